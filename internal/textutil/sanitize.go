package textutil

import (
	"strings"
	"unicode/utf8"
)

// MaxFileNameRunes caps sanitized names so date prefixes and suffixes still fit
// common filesystem limits.
const MaxFileNameRunes = 100

// fileNameReplacer replaces filesystem-unsafe characters with underscores.
var fileNameReplacer = strings.NewReplacer(
	"<", "_",
	">", "_",
	":", "_",
	"\"", "_",
	"/", "_",
	"\\", "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// SanitizeFileName makes a title or channel name safe to use as a single path
// segment. Unsafe characters become underscores, control characters are
// dropped, leading and trailing dots and spaces are trimmed, and the result is
// capped at MaxFileNameRunes. Returns fallback when nothing usable remains.
func SanitizeFileName(name, fallback string) string {
	name = Normalize(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = fileNameReplacer.Replace(name)
	name = strings.Trim(name, ". ")
	if utf8.RuneCountInString(name) > MaxFileNameRunes {
		runes := []rune(name)
		name = strings.TrimRight(string(runes[:MaxFileNameRunes]), ". ")
	}
	if name == "" {
		return fallback
	}
	return name
}
