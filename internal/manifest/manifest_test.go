package manifest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backplane-io/backplane/internal/ir"
	"github.com/backplane-io/backplane/internal/outputs"
)

func TestAssemble_FullBackend(t *testing.T) {
	m := &Manifest{
		Name:        "orders",
		Description: "orders backend",
		Functions: []*FunctionSpec{
			{Name: "hook", Entry: "./functions/hook/handler.ts"},
		},
		Auth: &AuthSpec{
			SelfSignUpEnabled: true,
			Triggers:          map[string]string{"preSignUp": "hook"},
		},
		Data: &DataSpec{
			Schema:            `type Todo { id: ID! }`,
			AuthorizationMode: "AMAZON_COGNITO_USER_POOLS",
			Models: []*ModelSpec{
				{Name: "Todo", PartitionKey: &KeySpec{Name: "id", Type: "S"}},
			},
		},
		Storage: []*StorageSpec{{Name: "media", Versioned: true}},
	}

	b, err := Assemble(m)
	require.NoError(t, err)

	tpl, err := b.Synthesize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "orders backend", tpl.Description)

	records, err := outputs.ParseMetadata(tpl.Metadata[ir.MetadataOutputsKey])
	require.NoError(t, err)
	assert.Contains(t, records, "Backplane::Auth")
	assert.Contains(t, records, "Backplane::Data")
	assert.Contains(t, records, "Backplane::Storage")
	assert.Contains(t, records, "Backplane::Function::hook")

	// The trigger function materialized once: its output keys exist exactly
	// once, and the user pool references its logical ID.
	assert.Contains(t, tpl.Outputs, "hookFunctionArn")
}

func TestAssemble_UnknownTriggerFunction(t *testing.T) {
	m := &Manifest{
		Name: "orders",
		Auth: &AuthSpec{Triggers: map[string]string{"preSignUp": "ghost"}},
	}
	_, err := Assemble(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown function "ghost"`)
}

func TestAssemble_DuplicateFunction(t *testing.T) {
	m := &Manifest{
		Name: "orders",
		Functions: []*FunctionSpec{
			{Name: "hook"},
			{Name: "hook"},
		},
	}
	_, err := Assemble(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared twice")
}

func TestAssemble_UserPoolDataWithoutAuth(t *testing.T) {
	m := &Manifest{
		Name: "orders",
		Data: &DataSpec{
			Schema:            `type Todo { id: ID! }`,
			AuthorizationMode: "AMAZON_COGNITO_USER_POOLS",
		},
	}
	_, err := Assemble(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires an auth block")
}

func TestAssemble_ModelWithoutPartitionKey(t *testing.T) {
	m := &Manifest{
		Name: "orders",
		Data: &DataSpec{
			Schema: `type Todo { id: ID! }`,
			Models: []*ModelSpec{{Name: "Todo"}},
		},
	}
	_, err := Assemble(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition key")
}
