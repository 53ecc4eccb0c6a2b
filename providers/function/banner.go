package function

import (
	"fmt"
	"os"
	"strings"
)

// AssembleBanner concatenates runtime shim snippets into a single build-time
// banner injected ahead of the bundled handler. Comment lines and blank lines
// are stripped; the shims' code lines keep their original order. A purely
// textual transform: the only I/O is reading the local shim files.
func AssembleBanner(paths []string) (string, error) {
	var lines []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read shim file %s: %w", path, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "//") {
				continue
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
