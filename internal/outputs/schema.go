// Package outputs implements backend output storage: recording resource-derived
// values into the deploy target's outputs and metadata sections in a
// schema-validated, versioned form, so client-config tooling can read them
// back without re-running synthesis.
package outputs

import "fmt"

// MetadataRecord is the validated per-group output metadata: the entry
// version and the template output keys that belong to the group, in
// insertion order.
type MetadataRecord struct {
	Version      string
	StackOutputs []string
}

// ParseMetadata validates raw output metadata against the accepted shape:
// a mapping from output-group name to {version: string, stackOutputs:
// []string}. It is pure and side-effect free; the storage strategy uses it
// before emission and downstream consumers use it after retrieval.
func ParseMetadata(raw any) (map[string]MetadataRecord, error) {
	records := make(map[string]MetadataRecord)
	if raw == nil {
		return records, nil
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("output metadata must be a mapping, got %T", raw)
	}

	for name, v := range m {
		rec, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("output metadata for %q must be a mapping, got %T", name, v)
		}

		for field := range rec {
			if field != "version" && field != "stackOutputs" {
				return nil, fmt.Errorf("output metadata for %q has unexpected field %q", name, field)
			}
		}

		version, ok := rec["version"].(string)
		if !ok {
			return nil, fmt.Errorf("output metadata for %q is missing a string version", name)
		}

		rawKeys, ok := rec["stackOutputs"]
		if !ok {
			return nil, fmt.Errorf("output metadata for %q is missing stackOutputs", name)
		}

		var keys []string
		switch list := rawKeys.(type) {
		case []string:
			keys = append(keys, list...)
		case []any:
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("stackOutputs for %q must contain only strings, got %T", name, item)
				}
				keys = append(keys, s)
			}
		default:
			return nil, fmt.Errorf("stackOutputs for %q must be a list of strings, got %T", name, rawKeys)
		}

		records[name] = MetadataRecord{Version: version, StackOutputs: keys}
	}

	return records, nil
}
