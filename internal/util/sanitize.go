package util

import (
	"strings"
	"unicode"
)

const maxNameRunes = 120

// SanitizeName strips control and invisible characters from a display name
// and collapses inner whitespace. The result is cut to 120 runes.
func SanitizeName(name string) string {
	builder := strings.Builder{}
	builder.Grow(len(name))

	for _, char := range name {
		if unicode.IsControl(char) && !unicode.IsSpace(char) {
			continue
		}
		if isInvisibleUnicode(char) {
			continue
		}
		builder.WriteRune(char)
	}

	cleaned := strings.Join(strings.Fields(builder.String()), " ")

	// Truncate by runes (not bytes) to avoid splitting multi-byte characters.
	runes := []rune(cleaned)
	if len(runes) > maxNameRunes {
		runes = runes[:maxNameRunes]
	}

	return string(runes)
}

// DigitsOnly drops everything but ASCII digits, so "123.456.789-09" becomes
// "12345678909".
func DigitsOnly(value string) string {
	builder := strings.Builder{}
	builder.Grow(len(value))

	for _, char := range value {
		if char >= '0' && char <= '9' {
			builder.WriteRune(char)
		}
	}

	return builder.String()
}

// isInvisibleUnicode returns true for zero-width, formatting, and other
// invisible Unicode characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // Zero-Width Space
		'\u200C', // Zero-Width Non-Joiner
		'\u200D', // Zero-Width Joiner
		'\u200E', // Left-to-Right Mark
		'\u200F', // Right-to-Left Mark
		'\u2060', // Word Joiner
		'\uFEFF': // Zero-Width No-Break Space / BOM
		return true
	}

	return unicode.Is(unicode.Cf, r)
}
