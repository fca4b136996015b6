package policy

import "math"

// Score holds the penalty total of each tier. Index 0 is tier 1.
// Scores compare lexicographically so no amount of lower-tier cost outweighs a higher tier.
type Score [NumTiers]float64

// Charge adds amount to the given tier (1-based)
func (s *Score) Charge(tier int, amount float64) {
	s[tier-1] += amount
}

// Plus returns the element-wise sum
func (s Score) Plus(o Score) Score {
	var r Score
	for i := range s {
		r[i] = s[i] + o[i]
	}
	return r
}

// Tier returns the total of one tier (1-based)
func (s Score) Tier(tier int) float64 {
	return s[tier-1]
}

// Total returns the scalar objective, the plain sum of all tiers
func (s Score) Total() float64 {
	total := 0.0
	for _, v := range s {
		total += v
	}
	return total
}

// IsZero reports whether no penalty was charged
func (s Score) IsZero() bool {
	for _, v := range s {
		if !nearlyEqual(v, 0) {
			return false
		}
	}
	return true
}

// HasViolationsThrough reports whether any tier from 1 up to and including tier is charged
func (s Score) HasViolationsThrough(tier int) bool {
	for i := 0; i < tier && i < NumTiers; i++ {
		if !nearlyEqual(s[i], 0) {
			return true
		}
	}
	return false
}

// Less reports whether s is strictly better than o
func (s Score) Less(o Score) bool {
	for i := range s {
		if nearlyEqual(s[i], o[i]) {
			continue
		}
		return s[i] < o[i]
	}
	return false
}

// Equal reports whether both scores charge the same amount on every tier
func (s Score) Equal(o Score) bool {
	for i := range s {
		if !nearlyEqual(s[i], o[i]) {
			return false
		}
	}
	return true
}

func nearlyEqual(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= 1e-9*scale
}
