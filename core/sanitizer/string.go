package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>?`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Trim removes leading and trailing whitespace from the string.
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// TrimToLower trims whitespace and converts to lowercase in one operation.
func TrimToLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MaxLength handles Unicode properly and prevents oversized malicious input.
func MaxLength(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// RemoveExtraWhitespace collapses whitespace runs to single spaces.
func RemoveExtraWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// RemoveCRLF removes carriage returns and line feeds, the characters used
// for header injection.
func RemoveCRLF(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, s)
}

// RemoveControlChars removes all control characters.
func RemoveControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// StripHTML removes tag-like fragments, including unterminated ones.
func StripHTML(s string) string {
	return htmlTagRegex.ReplaceAllString(s, "")
}
