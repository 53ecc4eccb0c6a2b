package outputs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backplane-io/backplane/internal/ir"
)

func TestAddBackendOutputEntry_RecordsOutputsAndMetadata(t *testing.T) {
	tpl := ir.NewTemplate("test")
	s := NewStorageStrategy(tpl)

	payload := ir.NewOutputPayload().
		Set("userPoolId", "pool-123").
		Set("authRegion", "us-east-1")
	err := s.AddBackendOutputEntry("Backplane::Auth", ir.BackendOutputEntry{Version: "1", Payload: payload})
	require.NoError(t, err)

	assert.Equal(t, "pool-123", tpl.Outputs["userPoolId"])
	assert.Equal(t, "us-east-1", tpl.Outputs["authRegion"])

	records, err := ParseMetadata(tpl.Metadata[ir.MetadataOutputsKey])
	require.NoError(t, err)
	assert.Equal(t, "1", records["Backplane::Auth"].Version)
	assert.Equal(t, []string{"userPoolId", "authRegion"}, records["Backplane::Auth"].StackOutputs)
}

func TestAddBackendOutputEntry_SingleKeyEntry(t *testing.T) {
	tpl := ir.NewTemplate("test")
	s := NewStorageStrategy(tpl)

	payload := ir.NewOutputPayload().Set("something", "special")
	require.NoError(t, s.AddBackendOutputEntry("X", ir.BackendOutputEntry{Version: "1", Payload: payload}))

	assert.Equal(t, "special", tpl.Outputs["something"])

	records, err := ParseMetadata(tpl.Metadata[ir.MetadataOutputsKey])
	require.NoError(t, err)
	assert.Equal(t, "1", records["X"].Version)
	assert.Equal(t, []string{"something"}, records["X"].StackOutputs)
}

func TestAddBackendOutputEntry_PreservesInsertionOrder(t *testing.T) {
	tpl := ir.NewTemplate("test")
	s := NewStorageStrategy(tpl)

	payload := ir.NewOutputPayload().
		Set("zeta", "1").
		Set("alpha", "2").
		Set("mike", "3")
	require.NoError(t, s.AddBackendOutputEntry("group", ir.BackendOutputEntry{Version: "1", Payload: payload}))

	records, err := ParseMetadata(tpl.Metadata[ir.MetadataOutputsKey])
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mike"}, records["group"].StackOutputs)
}

func TestAddBackendOutputEntry_OutputKeyCollision(t *testing.T) {
	tpl := ir.NewTemplate("test")
	s := NewStorageStrategy(tpl)

	first := ir.NewOutputPayload().Set("bucketName", "a")
	require.NoError(t, s.AddBackendOutputEntry("one", ir.BackendOutputEntry{Version: "1", Payload: first}))

	// Same output key from a different group is a hard error.
	second := ir.NewOutputPayload().Set("bucketName", "b")
	err := s.AddBackendOutputEntry("two", ir.BackendOutputEntry{Version: "1", Payload: second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucketName")
}

func TestAddBackendOutputEntry_GroupNameOverwritesRecord(t *testing.T) {
	tpl := ir.NewTemplate("test")
	s := NewStorageStrategy(tpl)

	require.NoError(t, s.AddBackendOutputEntry("group", ir.BackendOutputEntry{
		Version: "1",
		Payload: ir.NewOutputPayload().Set("first", "a"),
	}))
	require.NoError(t, s.AddBackendOutputEntry("group", ir.BackendOutputEntry{
		Version: "2",
		Payload: ir.NewOutputPayload().Set("second", "b"),
	}))

	records, err := ParseMetadata(tpl.Metadata[ir.MetadataOutputsKey])
	require.NoError(t, err)
	assert.Equal(t, "2", records["group"].Version)
	assert.Equal(t, []string{"second"}, records["group"].StackOutputs)
	// Both outputs still exist; only the metadata record was replaced.
	assert.Contains(t, tpl.Outputs, "first")
	assert.Contains(t, tpl.Outputs, "second")
}

func TestAddBackendOutputEntry_EmptyName(t *testing.T) {
	s := NewStorageStrategy(ir.NewTemplate("test"))
	err := s.AddBackendOutputEntry("", ir.BackendOutputEntry{Version: "1"})
	assert.Error(t, err)
}

func TestValidateTemplate_AcceptsPrimitivesAndIntrinsics(t *testing.T) {
	tpl := ir.NewTemplate("test")
	require.NoError(t, tpl.AddResource("Fn", &ir.Resource{Type: "AWS::Lambda::Function"}))

	s := NewStorageStrategy(tpl)
	payload := ir.NewOutputPayload().
		Set("plain", "value").
		Set("flag", true).
		Set("count", 3).
		Set("names", []string{"a", "b"}).
		Set("fnArn", ir.GetAtt("Fn", "Arn")).
		Set("fnName", ir.Ref("Fn"))
	require.NoError(t, s.AddBackendOutputEntry("group", ir.BackendOutputEntry{Version: "1", Payload: payload}))

	assert.NoError(t, ValidateTemplate(tpl))
}

func TestValidateTemplate_RejectsArbitraryComposite(t *testing.T) {
	tpl := ir.NewTemplate("test")
	s := NewStorageStrategy(tpl)
	payload := ir.NewOutputPayload().Set("bad", map[string]any{"nested": map[string]any{"deep": 1}})
	require.NoError(t, s.AddBackendOutputEntry("group", ir.BackendOutputEntry{Version: "1", Payload: payload}))

	err := ValidateTemplate(tpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestValidateTemplate_RejectsDanglingStackOutput(t *testing.T) {
	tpl := ir.NewTemplate("test")
	// Metadata referencing an output that was never added.
	tpl.OutputRecords()["group"] = map[string]any{
		"version":      "1",
		"stackOutputs": []string{"ghost"},
	}

	err := ValidateTemplate(tpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ghost"`)
}

func TestValidateTemplate_RejectsMalformedMetadata(t *testing.T) {
	tpl := ir.NewTemplate("test")
	tpl.Metadata[ir.MetadataOutputsKey] = "garbage"

	err := ValidateTemplate(tpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation")
}
