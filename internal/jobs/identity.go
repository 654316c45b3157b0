package jobs

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// IdentityKey is normalized(title) + "|" + normalized(company).
type IdentityKey string

// Key builds the identity of a (title, company) pair.
func Key(title, company string) IdentityKey {
	return IdentityKey(Normalize(title) + "|" + Normalize(company))
}

// Split returns the normalized title and company halves of the key.
func (k IdentityKey) Split() (title, company string) {
	title, company, _ = strings.Cut(string(k), "|")
	return title, company
}

// Normalize folds accents, lowercases, keeps letters, digits and spaces only
// and collapses whitespace. It is idempotent.
func Normalize(s string) string {
	folded, _, err := transform.String(foldChain(), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Fold strips diacritics, e.g. "Zürich" becomes "Zurich".
func Fold(s string) string {
	folded, _, err := transform.String(foldChain(), s)
	if err != nil {
		return s
	}
	return folded
}

// a transform.Transformer is stateful, so every call gets a fresh chain.
func foldChain() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
