// Package strings provides common string utilities.
package strings

import (
	"strings"
)

// Truncate shortens a string to n characters with ellipsis.
// If n < 4, uses n = 4 to ensure room for "...".
func Truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// TruncateNoEllipsis shortens a string to n characters without ellipsis.
// Used where exact length limits are required.
func TruncateNoEllipsis(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// FirstLine returns the first non-empty line of s, trimmed.
// Used for stderr previews in error messages.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
