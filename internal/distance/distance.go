// Package distance scores transcripts against reference labels.
package distance

import "strings"

// Tokens splits s into whitespace separated words.
func Tokens(s string) []string {
	return strings.Fields(s)
}

// Levenshtein returns the minimum number of single token insertions,
// deletions or substitutions that turn candidate into reference.
// Memory use is bounded by the shorter of the two sequences.
func Levenshtein(reference, candidate []string) int {
	short, long := reference, candidate
	if len(short) > len(long) {
		short, long = long, short
	}
	n := len(short)

	previous := make([]int, n+1)
	current := make([]int, n+1)
	for j := range current {
		current[j] = j
	}
	for i := 1; i <= len(long); i++ {
		previous, current = current, previous
		current[0] = i
		for j := 1; j <= n; j++ {
			deletion := previous[j] + 1
			insertion := current[j-1] + 1
			substitution := previous[j-1]
			if short[j-1] != long[i-1] {
				substitution++
			}
			current[j] = min(deletion, insertion, substitution)
		}
	}
	return current[n]
}
