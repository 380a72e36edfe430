// Package suggest finds the closest known identifier to an unknown one, for
// "did you mean X?" error messages (spec §4.3).
package suggest

import "github.com/agnivade/levenshtein"

// MaxDistance is the edit-distance cutoff past which no suggestion is
// offered (spec §4.3: "edit distance ≤ 2").
const MaxDistance = 2

// Closest returns the candidate closest to want by Levenshtein distance,
// and whether any candidate was within MaxDistance.
func Closest(want string, candidates []string) (string, bool) {
	best := ""
	bestDist := MaxDistance + 1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(want, c)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best, bestDist <= MaxDistance
}
