// Package text cleans recognized text and scores how similar two
// translations are.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize drops every rune that is neither a word rune nor whitespace,
// collapses whitespace runs to a single space and trims the result.
// Word runes are Unicode letters, marks, numbers and '_'. Input is composed
// to NFC first so decomposed accents survive as one letter.
func Normalize(raw string) string {
	raw = norm.NFC.String(raw)

	var b strings.Builder
	b.Grow(len(raw))
	space := false
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
		case isWordRune(r):
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsBlank reports whether s has no non-space runes.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}
