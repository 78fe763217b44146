package nlp

import (
	"strings"
	"unicode"
)

// Normalize removes every rune outside the permitted alphabet (Hangul
// syllables, ASCII letters, ASCII digits, whitespace), collapses whitespace
// runs to a single space and trims both ends. It is idempotent.
func Normalize(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case isHangulSyllable(r), isASCIIAlnum(r):
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, text)
	return strings.Join(strings.Fields(cleaned), " ")
}

func isHangulSyllable(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7A3
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
