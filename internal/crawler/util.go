package crawler

import "strings"

// ContainsAnyLower reports whether haystack contains any needle, ignoring case.
// Needles are expected to be lowercase already.
func ContainsAnyLower(haystack string, needles []string) bool {
	lowered := strings.ToLower(haystack)
	for _, needle := range needles {
		if needle != "" && strings.Contains(lowered, needle) {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
