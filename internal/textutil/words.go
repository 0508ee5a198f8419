package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Words splits text into case-folded words. A word is a run of letters,
// digits and apostrophes; apostrophes at either end of a run are dropped so
// quoted words fold to the same token as unquoted ones.
func Words(text string) []string {
	if text == "" {
		return nil
	}
	// Casers are stateful, so each call builds its own.
	folded := cases.Fold().String(text)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !isWordRune(r)
	})
	words := fields[:0]
	for _, field := range fields {
		field = strings.Trim(field, "'’")
		if field == "" {
			continue
		}
		words = append(words, field)
	}
	return words
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '’'
}
