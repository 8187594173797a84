package normalize

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/antzucaro/matchr"
)

var nameStopwords = map[string]bool{
	"the": true,
	"a":   true,
	"an":  true,
	"le":  true,
	"la":  true,
	"les": true,
}

// Similarity is 1 - levenshtein/max_len over the two strings. Two empty
// strings are identical.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(maxLen)
}

// TokenJaccard is the Jaccard index of the whitespace-separated token sets.
func TokenJaccard(a, b string) float64 {
	return SetJaccard(strings.Fields(a), strings.Fields(b))
}

// SetJaccard is |A∩B| / |A∪B|. Two empty sets score 1.
func SetJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[s] = true
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[s] = true
	}

	inter := 0
	for s := range setA {
		if setB[s] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// PrimaryToken returns the first non-stopword token of a normalized name.
func PrimaryToken(normalized string) string {
	tokens := strings.Fields(normalized)
	for _, t := range tokens {
		if !nameStopwords[t] {
			return t
		}
	}
	if len(tokens) > 0 {
		return tokens[0]
	}
	return ""
}

// PhoneticKey encodes the primary name token with Soundex and Double
// Metaphone, concatenated. Returns "" when the token has no letters.
func PhoneticKey(normalized string) string {
	token := PrimaryToken(normalized)
	if !hasLetter(token) {
		return ""
	}
	primary, _ := matchr.DoubleMetaphone(token)
	return matchr.Soundex(token) + ":" + primary
}

// IsAbbreviation reports whether one normalized name is the initials of the
// other, as in "ibm" and "international business machines".
func IsAbbreviation(a, b string) bool {
	return abbreviates(a, b) || abbreviates(b, a)
}

func abbreviates(short, long string) bool {
	initials := strings.ReplaceAll(short, " ", "")
	tokens := strings.Fields(long)
	if len(tokens) < 2 || len(initials) != len(tokens) {
		return false
	}
	for i, t := range tokens {
		if t[0] != initials[i] {
			return false
		}
	}
	return true
}

func hasLetter(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return true
		}
	}
	return false
}
