package ir

import "strings"

// LogicalID builds a CloudFormation logical ID from name parts: each part is
// stripped of non-alphanumeric characters and capitalized, then the parts are
// concatenated. "function", "order-api", "Role" -> "FunctionOrderApiRole".
func LogicalID(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		upper := true
		for _, r := range part {
			switch {
			case r >= 'a' && r <= 'z':
				if upper {
					b.WriteRune(r - 'a' + 'A')
				} else {
					b.WriteRune(r)
				}
				upper = false
			case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
				b.WriteRune(r)
				upper = false
			default:
				// Separators reset capitalization.
				upper = true
			}
		}
	}
	return b.String()
}
