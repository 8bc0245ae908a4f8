package format

import (
	"strings"
	"unicode/utf8"
)

// TruncationMarker is appended to values cut down by Truncate.
const TruncationMarker = "..."

// Preview returns a shortened string for logging
func Preview(s string, length int) string {
	if utf8.RuneCountInString(s) <= length {
		return s
	}
	return string([]rune(s)[:length]) + TruncationMarker
}

// Truncate limits s to max characters. Values that do not fit are cut and end
// with TruncationMarker, so the result never exceeds max.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= len(TruncationMarker) {
		return string(runes[:max])
	}
	return strings.TrimRightFunc(string(runes[:max-len(TruncationMarker)]), isSpace) + TruncationMarker
}

// CollapseSpace trims s and replaces every whitespace run with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
