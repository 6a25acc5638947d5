package taxonomy

import (
	"strings"
	"unicode"
)

// normalize lowercases text and folds punctuation into spaces so keyword
// containment checks do not trip over source formatting
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ':' || r == '-' || r == '\'':
			// kept: keywords like "1:1", "self-harm" and possessives
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Normalize exposes the keyword normalization used across classification
// and entity matching
func Normalize(text string) string {
	return normalize(text)
}

// containsWord reports whether the normalized text contains the keyword.
// Short keywords (titles like "dr", "pa", "ot") only match on word
// boundaries; longer keywords match as substrings, the way the source
// notes actually use them ("chok" matching "choking").
func containsWord(text, keyword string) bool {
	keyword = strings.ToLower(keyword)
	if len(keyword) > 3 {
		return strings.Contains(text, keyword)
	}
	for _, word := range strings.Fields(text) {
		if word == keyword {
			return true
		}
	}
	return false
}

// ContainsKeyword exposes the containment rule used by the classifier
func ContainsKeyword(text, keyword string) bool {
	return containsWord(text, keyword)
}
