package syntax

import (
	"fmt"
	"strings"
)

// maxSuggestDistance is the largest edit distance offered as a suggestion.
const maxSuggestDistance = 2

// Suggest returns the linked grammar whose name or alias is closest to name,
// if one is within a small edit distance.
func Suggest(name string) (Language, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return "", false
	}

	var (
		best     Language
		bestDist = maxSuggestDistance + 1
	)

	consider := func(candidate string, lang Language) {
		dist := editDistance(lower, candidate)
		if dist < bestDist || (dist == bestDist && lang < best) {
			best, bestDist = lang, dist
		}
	}

	for _, lang := range Languages() {
		consider(string(lang), lang)
	}

	for alias, lang := range aliases {
		consider(alias, lang)
	}

	// A distance as long as the input is a rewrite, not a typo.
	if bestDist > maxSuggestDistance || bestDist >= len([]rune(lower)) {
		return "", false
	}

	return best, true
}

// Describe quotes an unsupported language name for error messages, adding
// a suggestion when one is close.
func Describe(name string) string {
	if lang, ok := Suggest(name); ok {
		return fmt.Sprintf("%q (did you mean %q?)", name, lang)
	}

	return fmt.Sprintf("%q", name)
}

// editDistance is the Levenshtein distance between a and b in runes, using
// a single column of the dynamic programming table.
func editDistance(a, b string) int {
	s1, s2 := []rune(a), []rune(b)
	if len(s2) == 0 {
		return len(s1)
	}

	column := make([]int, len(s1)+1)
	for i := range column {
		column[i] = i
	}

	for col, r2 := range s2 {
		column[0] = col + 1
		lastDiag := col

		for row, r1 := range s1 {
			oldDiag := column[row+1]

			cost := 1
			if r1 == r2 {
				cost = 0
			}

			column[row+1] = min(column[row+1]+1, column[row]+1, lastDiag+cost)
			lastDiag = oldDiag
		}
	}

	return column[len(s1)]
}
