package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Standardize canonicalizes free text for comparison: lowercase, no
// diacritics, separators turned into spaces, punctuation dropped and
// whitespace collapsed. Standardize(Standardize(s)) == Standardize(s).
func Standardize(s string) string {
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	folded, _, err := transform.String(stripMarks, lower)
	if err != nil {
		folded = lower
	}

	b := strings.Builder{}
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case isSeparator(r):
			b.WriteRune(' ')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

func isSeparator(r rune) bool {
	switch r {
	case '-', '_', '\'', '’', '‐', '‑', '–':
		return true
	}
	return false
}
