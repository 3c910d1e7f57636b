// Package textutil holds small string helpers for parsing user-supplied names.
package textutil

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Closest returns the candidate nearest to input by edit distance, provided
// the distance is small enough to be a plausible typo.
func Closest(input string, candidates []string) (string, bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return "", false
	}
	best, bestDist := "", -1
	for _, cand := range candidates {
		dist := levenshtein.ComputeDistance(input, cand)
		if dist > limit(len(cand)) {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = cand, dist
		}
	}
	return best, bestDist >= 0
}

// Unknown formats the error text for an unrecognised name, with a hint when
// one of the candidates is close.
func Unknown(what, input string, candidates []string) string {
	if s, ok := Closest(input, candidates); ok {
		return "unknown " + what + " " + quote(input) + " (did you mean " + quote(s) + "?)"
	}
	return "unknown " + what + " " + quote(input) + " (want one of " + strings.Join(candidates, ", ") + ")"
}

func quote(s string) string { return "\"" + s + "\"" }

// limit is the largest edit distance accepted for a candidate of the given
// length. From four letters up a swapped pair (two edits) still counts.
func limit(length int) int {
	switch {
	case length <= 3:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
