// internal/form/fieldname.go
//
// Field name helper.
//
// • FieldName(e) ─ derives the submission key of an element from its label.
//
// Rules
// -----
// 1. Lower-case everything, then fold Latin letters to ASCII
//    (“é” → “e”, “ß” → “ss”).
// 2. Convert any run of non-[a-z0-9] characters to one “_”.
// 3. Trim leading / trailing “_”.
// 4. If the result is empty, return "field_" + element id.
//
// Notes
// -----
// • Deterministic: the same label always yields the same name, so names are
//   stable across renders and between preview and submission.
// • Two elements with the same label get the same name.  No dedupe here.

package form

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters with no canonical decomposition.
var ligatures = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "œ", "oe", "ø", "o", "đ", "d", "ł", "l", "þ", "th",
)

// FieldName converts an element label → lower_snake ASCII.
func FieldName(e Element) string {
	if name := snake(e.Properties.Label); name != "" {
		return name
	}
	return "field_" + e.ID
}

func snake(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastWasSep := true // suppresses a leading “_”
	for _, r := range fold(strings.ToLower(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasSep = false
		default:
			if !lastWasSep {
				b.WriteByte('_')
				lastWasSep = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// fold strips combining marks after decomposition.  Chains keep state, so
// each call builds its own.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, ligatures.Replace(s))
	if err != nil {
		return s
	}
	return out
}
