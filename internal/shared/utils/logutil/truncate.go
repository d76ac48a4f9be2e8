package logutil

import "unicode/utf8"

// TruncateForLog shortens s to at most maxLen characters for logging,
// appending "..." when anything was cut. It never splits a multi-byte rune.
func TruncateForLog(s string, maxLen int) string {
	if maxLen <= 0 {
		if s == "" {
			return ""
		}
		return "..."
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
