// Package stringutil provides common string utility functions.
package stringutil

import "unicode/utf8"

// TruncateString truncates s to at most maxLen runes.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// TruncateStringWithEllipsis truncates s to maxLen runes, replacing the tail
// with "..." when it does not fit.
func TruncateStringWithEllipsis(s string, maxLen int) string {
	if maxLen < 4 {
		return TruncateString(s, maxLen)
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}

// Preview returns the first n runes of s followed by "..." when s is longer.
// Used for log fields that would otherwise carry whole prompts.
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return TruncateString(s, n) + "..."
}
