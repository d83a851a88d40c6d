package utils

import (
	"strings"
	"unicode"
)

// SanitizeString strips control characters (newlines and tabs survive) and
// trims surrounding whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MaskSensitive keeps the first visible runes of s for log lines and
// replaces the rest with a fixed marker so the length does not leak.
func MaskSensitive(s string, visible int) string {
	runes := []rune(s)
	if len(runes) <= visible {
		return "***"
	}
	return string(runes[:visible]) + "***"
}
