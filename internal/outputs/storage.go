package outputs

import (
	"fmt"
	"sort"

	"github.com/backplane-io/backplane/internal/ir"
	"github.com/backplane-io/backplane/internal/logging"
)

// StorageStrategy is the sole writer of the deploy target's outputs and
// output metadata. Each payload key becomes a template output named by the
// key itself (not prefixed by the group name), and a metadata record listing
// those keys is written under the group name.
type StorageStrategy struct {
	template *ir.Template
}

// NewStorageStrategy creates a storage strategy writing into the given
// deploy target.
func NewStorageStrategy(tpl *ir.Template) *StorageStrategy {
	return &StorageStrategy{template: tpl}
}

// AddBackendOutputEntry records an output entry under a group name. Payload
// values are stored as-is — composites such as CloudFormation intrinsics are
// used directly, never stringified; whether every value is emittable is
// checked at template-synthesis time by ValidateTemplate, not here.
// Re-adding a group name overwrites that name's metadata record; output KEY
// collisions across the whole template always error.
func (s *StorageStrategy) AddBackendOutputEntry(name string, entry ir.BackendOutputEntry) error {
	if name == "" {
		return fmt.Errorf("output group name must not be empty")
	}

	var keys []string
	if entry.Payload != nil {
		keys = entry.Payload.Keys()
	}

	for _, key := range keys {
		value, _ := entry.Payload.Get(key)
		if err := s.template.AddOutput(key, value); err != nil {
			return fmt.Errorf("output group %q: %w", name, err)
		}
	}

	records := s.template.OutputRecords()
	records[name] = map[string]any{
		"version":      entry.Version,
		"stackOutputs": keys,
	}

	logging.Debug("recorded backend output entry", "group", name, "version", entry.Version, "keys", len(keys))
	return nil
}

// ValidateTemplate checks the deploy target's aggregate output state before
// emission: every output value must be template-safe, the metadata section
// must conform to the schema, and every stackOutputs key must exist as an
// actual output of the same synthesis pass. Failure identifies the offending
// key or group name.
func ValidateTemplate(tpl *ir.Template) error {
	outputKeys := make([]string, 0, len(tpl.Outputs))
	for key := range tpl.Outputs {
		outputKeys = append(outputKeys, key)
	}
	sort.Strings(outputKeys)

	for _, key := range outputKeys {
		if !isTemplateSafe(tpl.Outputs[key]) {
			return fmt.Errorf("output %q has a value that cannot be represented as a template primitive (%T)", key, tpl.Outputs[key])
		}
	}

	records, err := ParseMetadata(tpl.Metadata[ir.MetadataOutputsKey])
	if err != nil {
		return fmt.Errorf("output metadata failed schema validation: %w", err)
	}

	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, key := range records[name].StackOutputs {
			if _, ok := tpl.Outputs[key]; !ok {
				return fmt.Errorf("output metadata for %q references output %q which does not exist in this synthesis", name, key)
			}
		}
	}

	return nil
}

// isTemplateSafe reports whether a value can be emitted as a deploy-target
// output: a primitive, a list of strings, or a CloudFormation intrinsic
// (which flattens to a primitive at deploy time).
func isTemplateSafe(v any) bool {
	switch val := v.(type) {
	case string, bool, int, int32, int64, float32, float64:
		return true
	case []string:
		return true
	case []any:
		for _, item := range val {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	default:
		return ir.IsIntrinsic(v)
	}
}
