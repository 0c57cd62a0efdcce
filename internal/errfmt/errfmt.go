// Package errfmt bounds and cleans text that crosses the process boundary
// (stderr lines, remote error messages) before it reaches logs or errors.
package errfmt

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLen caps a single diagnostic string.
const MaxLen = 4096

// truncateUTF8 caps s at limit bytes, backtracking to a valid UTF-8 boundary.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	end := limit
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}

// Truncate caps s at MaxLen bytes with UTF-8-safe truncation.
func Truncate(s string) string {
	return truncateUTF8(s, MaxLen)
}

// Line prepares one line of child-process output for logging. Control
// characters other than tab are dropped, invalid UTF-8 is replaced, and the
// result is truncated to MaxLen bytes.
func Line(raw string) string {
	raw = strings.ToValidUTF8(raw, "�")
	clean := strings.Map(func(r rune) rune {
		if r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	return truncateUTF8(strings.TrimRight(clean, " \t"), MaxLen)
}
