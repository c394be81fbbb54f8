// Package sanitize strips text down to what a speech engine can pronounce.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// markup lists the formatting characters that language models like to emit.
const markup = "[]*#"

// Sanitize removes markup characters and every rune that is not a letter,
// a digit or whitespace. Accented letters survive: the input is NFC-composed
// first so a decomposed "é" is treated as one letter instead of "e" plus a
// combining mark. Dropping a rune can leave two composable neighbours, so
// the result is composed again until it no longer changes.
//
// Sanitize is total and idempotent.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}

	out := norm.NFC.String(text)
	for {
		next := norm.NFC.String(filter(out))
		if next == out {
			return out
		}
		out = next
	}
}

func filter(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markup, r) {
			continue
		}
		if keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsBlank reports whether text has nothing worth speaking.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

func keep(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r)
}
