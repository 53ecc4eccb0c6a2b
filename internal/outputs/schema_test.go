package outputs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadata_Nil(t *testing.T) {
	records, err := ParseMetadata(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseMetadata_Valid(t *testing.T) {
	raw := map[string]any{
		"Backplane::Auth": map[string]any{
			"version":      "1",
			"stackOutputs": []any{"userPoolId", "authRegion"},
		},
	}

	records, err := ParseMetadata(raw)
	require.NoError(t, err)
	require.Contains(t, records, "Backplane::Auth")
	assert.Equal(t, "1", records["Backplane::Auth"].Version)
	assert.Equal(t, []string{"userPoolId", "authRegion"}, records["Backplane::Auth"].StackOutputs)
}

func TestParseMetadata_VersionIsAnyString(t *testing.T) {
	// Versions are opaque strings, not numbers: "44" is valid.
	raw := map[string]any{
		"custom": map[string]any{
			"version":      "44",
			"stackOutputs": []string{"x"},
		},
	}
	records, err := ParseMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, "44", records["custom"].Version)
}

func TestParseMetadata_RejectsNonStringVersion(t *testing.T) {
	raw := map[string]any{
		"custom": map[string]any{
			"version":      44,
			"stackOutputs": []string{"x"},
		},
	}
	_, err := ParseMetadata(raw)
	assert.Error(t, err)
}

func TestParseMetadata_RejectsUnexpectedField(t *testing.T) {
	raw := map[string]any{
		"custom": map[string]any{
			"version":      "1",
			"stackOutputs": []string{"x"},
			"extra":        true,
		},
	}
	_, err := ParseMetadata(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected field")
}

func TestParseMetadata_RejectsMissingFields(t *testing.T) {
	_, err := ParseMetadata(map[string]any{
		"custom": map[string]any{"version": "1"},
	})
	assert.Error(t, err)

	_, err = ParseMetadata(map[string]any{
		"custom": map[string]any{"stackOutputs": []string{"x"}},
	})
	assert.Error(t, err)
}

func TestParseMetadata_RejectsNonStringKeys(t *testing.T) {
	raw := map[string]any{
		"custom": map[string]any{
			"version":      "1",
			"stackOutputs": []any{"ok", 7},
		},
	}
	_, err := ParseMetadata(raw)
	assert.Error(t, err)
}

func TestParseMetadata_RejectsNonMapping(t *testing.T) {
	_, err := ParseMetadata("not a mapping")
	assert.Error(t, err)

	_, err = ParseMetadata(map[string]any{"custom": "not a mapping"})
	assert.Error(t, err)
}
