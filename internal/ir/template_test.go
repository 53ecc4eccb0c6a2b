package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTemplate_FreshLineage(t *testing.T) {
	a := NewTemplate("one")
	b := NewTemplate("two")
	assert.NotEmpty(t, a.Lineage)
	assert.NotEqual(t, a.Lineage, b.Lineage)
}

func TestAddResource_Collision(t *testing.T) {
	tpl := NewTemplate("test")
	require.NoError(t, tpl.AddResource("Fn", &Resource{Type: "AWS::Lambda::Function"}))

	err := tpl.AddResource("Fn", &Resource{Type: "AWS::Lambda::Function"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestAddResource_Validation(t *testing.T) {
	tpl := NewTemplate("test")
	assert.Error(t, tpl.AddResource("", &Resource{Type: "AWS::S3::Bucket"}))
	assert.Error(t, tpl.AddResource("Bucket", nil))
	assert.Error(t, tpl.AddResource("Bucket", &Resource{}))
}

func TestAddOutput_Collision(t *testing.T) {
	tpl := NewTemplate("test")
	require.NoError(t, tpl.AddOutput("key", "value"))
	assert.Error(t, tpl.AddOutput("key", "other"))
	assert.Error(t, tpl.AddOutput("", "value"))
}

func TestRenderParse_RoundTrip(t *testing.T) {
	tpl := NewTemplate("round trip")
	require.NoError(t, tpl.AddResource("Bucket", &Resource{
		Type:       "AWS::S3::Bucket",
		Properties: map[string]any{"VersioningConfiguration": map[string]any{"Status": "Enabled"}},
	}))
	require.NoError(t, tpl.AddOutput("bucketName", Ref("Bucket")))
	tpl.OutputRecords()["Backplane::Storage"] = map[string]any{
		"version":      "1",
		"stackOutputs": []string{"bucketName"},
	}

	data, err := tpl.RenderJSON()
	require.NoError(t, err)

	parsed, err := ParseTemplate(data)
	require.NoError(t, err)

	assert.Equal(t, tpl.Lineage, parsed.Lineage)
	assert.Equal(t, "round trip", parsed.Description)
	require.Contains(t, parsed.Resources, "Bucket")
	assert.Equal(t, "AWS::S3::Bucket", parsed.Resources["Bucket"].Type)
	assert.Equal(t, map[string]any{"Ref": "Bucket"}, parsed.Outputs["bucketName"])
	// Lineage lives under the synthesis key, not in the outputs metadata.
	assert.NotContains(t, parsed.Metadata, MetadataSynthesisKey)
	assert.Contains(t, parsed.Metadata, MetadataOutputsKey)
}

func TestRenderYAML(t *testing.T) {
	tpl := NewTemplate("yaml")
	require.NoError(t, tpl.AddResource("Bucket", &Resource{Type: "AWS::S3::Bucket"}))

	data, err := tpl.RenderYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "AWSTemplateFormatVersion")
	assert.Contains(t, string(data), "AWS::S3::Bucket")
}
