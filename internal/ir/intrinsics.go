package ir

import "strings"

// Ref returns a CloudFormation Ref intrinsic for a logical ID.
func Ref(logicalID string) map[string]any {
	return map[string]any{"Ref": logicalID}
}

// GetAtt returns a CloudFormation Fn::GetAtt intrinsic.
func GetAtt(logicalID, attribute string) map[string]any {
	return map[string]any{"Fn::GetAtt": []any{logicalID, attribute}}
}

// Sub returns a CloudFormation Fn::Sub intrinsic.
func Sub(expr string) map[string]any {
	return map[string]any{"Fn::Sub": expr}
}

// IsIntrinsic reports whether a value is a CloudFormation intrinsic
// reference: a single-key mapping whose key is Ref or Fn::*. Intrinsics
// flatten to primitives at deploy time, so they count as template-safe
// output values.
func IsIntrinsic(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	for k := range m {
		if k == "Ref" || strings.HasPrefix(k, "Fn::") {
			return true
		}
	}
	return false
}

// IntrinsicTargets returns the logical IDs referenced by an intrinsic value,
// or nil if the value is not an intrinsic. Used for implicit dependency
// extraction when validating the resource graph.
func IntrinsicTargets(v any) []string {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return nil
	}
	if id, ok := m["Ref"].(string); ok {
		return []string{id}
	}
	if att, ok := m["Fn::GetAtt"]; ok {
		switch attr := att.(type) {
		case []any:
			if len(attr) > 0 {
				if id, ok := attr[0].(string); ok {
					return []string{id}
				}
			}
		case []string:
			if len(attr) > 0 {
				return []string{attr[0]}
			}
		case string:
			// Short form "LogicalID.Attribute".
			if idx := strings.Index(attr, "."); idx > 0 {
				return []string{attr[:idx]}
			}
		}
	}
	return nil
}
