package fusion

import (
	"strings"
	"unicode"
)

// alphanumericLower keeps only letters and digits, lowercased — the
// comparison form used by the text-similarity match strategy (spec.md
// §4.5 step 2: "lowercased, alphanumeric-only forms").
func alphanumericLower(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// normalizeForConsistency case-folds, collapses whitespace, and strips
// punctuation — the comparison form used for the post-assignment
// consistency check (spec.md §4.5: "normalized (case-folded,
// whitespace-collapsed, punctuation-stripped) forms").
func normalizeForConsistency(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastWasSpace = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasSpace = false
		default:
			// punctuation dropped
		}
	}
	return strings.TrimSpace(b.String())
}
