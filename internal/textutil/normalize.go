package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Normalize trims text and converts it to Unicode NFC so composed and
// decomposed kana compare and count equally.
func Normalize(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// FoldWidth maps full-width Latin letters, digits, and punctuation to their
// narrow forms. Kana and kanji are unchanged.
func FoldWidth(text string) string {
	return width.Narrow.String(text)
}

// StartsUpper reports whether the first letter of text, after width folding,
// is an upper-case letter. Leading spaces and punctuation are skipped;
// a leading non-Latin letter such as kana reports false.
func StartsUpper(text string) bool {
	for _, r := range FoldWidth(strings.TrimSpace(text)) {
		if unicode.IsLetter(r) {
			return unicode.IsUpper(r)
		}
		if unicode.IsDigit(r) {
			return false
		}
	}
	return false
}

// RuneLen returns the number of runes in text.
func RuneLen(text string) int {
	return len([]rune(text))
}
