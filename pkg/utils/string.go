package utils

import "strings"

// Truncate shortens s to at most maxLen runes, appending "..." when cut.
// Newlines are folded to spaces so the result fits on one log line.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
