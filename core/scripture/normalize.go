package scripture

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// dashReplacer maps em dash and en dash to a plain hyphen and drops periods.
var dashReplacer = strings.NewReplacer(
	"—", "-", // em dash
	"–", "-", // en dash
	".", "",
)

// Normalize folds s into the comparison form shared by the parser and the
// verse store: lowercase, diacritics removed, em/en dashes replaced with
// '-', periods removed, whitespace collapsed and trimmed.
//
// Normalize is total and idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)
	s = stripMarks(s)
	s = dashReplacer.Replace(s)

	return strings.Join(strings.Fields(s), " ")
}

// stripMarks removes combining marks after canonical decomposition.
// A transformer chain keeps internal state, so one is built per call.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Words splits normalized text into letter/digit runs.
func Words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
