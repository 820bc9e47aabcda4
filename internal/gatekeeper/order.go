package gatekeeper

import (
	"math"
	"sort"
)

// scorePrecision is the grid combined scores are rounded to. Rounding once
// at scoring time lets Order compare exactly, so mathematically equal sums
// fall through to the tie-breaks and the ordering stays transitive.
const scorePrecision = 1e9

func roundScore(v float64) float64 {
	return math.Round(v*scorePrecision) / scorePrecision
}

// Order sorts claims in place: combined score descending, then confidence
// descending, then freshness descending, then claim id ascending.
func Order(claims []ScoredClaim) {
	sort.SliceStable(claims, func(i, j int) bool {
		return less(claims[i], claims[j])
	})
}

func less(a, b ScoredClaim) bool {
	if a.Combined != b.Combined {
		return a.Combined > b.Combined
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Freshness != b.Freshness {
		return a.Freshness > b.Freshness
	}
	return a.Claim.ID < b.Claim.ID
}
