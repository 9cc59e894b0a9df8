// Package textmatch provides title and author matching used to validate
// search results against a paper's own metadata.
package textmatch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultRatioThreshold is the minimum Ratio for two titles to count as the same paper.
const DefaultRatioThreshold = 90

// NormalizeTitle lowercases s, drops every character that is not a letter,
// digit or whitespace, and collapses whitespace runs to a single space.
func NormalizeTitle(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Ratio returns an edit-distance similarity score in [0, 100] for two strings:
// 100 * (1 - distance / max(len(a), len(b))), lengths counted in runes.
func Ratio(a, b string) int {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 100 * (longest - dist) / longest
}

// IsFuzzyMatch reports whether two titles refer to the same paper: after
// normalization one contains the other, or their Ratio is at least
// DefaultRatioThreshold.
func IsFuzzyMatch(a, b string) bool {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return false
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	return Ratio(na, nb) >= DefaultRatioThreshold
}
