// Package stats provides the small set of statistical helpers shared by
// the A/B experiment runner and the experiment store client.
package stats

import "math"

// Percentile returns the p-th percentile of sorted using the nearest-rank
// method (spec §4.13, §9 quantified invariants): for a sorted sequence of
// length n, index = ceil(p/100*n) - 1, clamped to [0, n-1]. sorted must
// already be in ascending order.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
