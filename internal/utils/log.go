package utils

import "strings"

const ellipsis = "..."

// TruncateForLog collapses runs of whitespace into single spaces and cuts the result to limit
// runes, so multi-line prompts and notes stay on one log line.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}
