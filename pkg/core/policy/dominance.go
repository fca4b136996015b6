package policy

import (
	"fmt"
	"math"
	"strings"
)

// Scale is the roster size a policy is expected to dominate over
type Scale struct {
	Soldiers     int
	Days         int
	MinBaseBlock int
}

// Exceeds reports whether s is larger than other in any dimension
func (s Scale) Exceeds(other Scale) bool {
	return s.Soldiers > other.Soldiers || s.Days > other.Days || s.MinBaseBlock > other.MinBaseBlock
}

// MaxTierTotal is an upper bound on the total a tier can charge at the given scale
func (p Policy) MaxTierTotal(tier int, scale Scale) float64 {
	total := 0.0
	for _, d := range p.Descriptors {
		if d.Tier != tier {
			continue
		}
		price := d.UnitCost * math.Max(1, d.CriticalMultiplier) * math.Max(1, p.WeekendFactor)
		total += price * float64(maxUnits(d.Scope, scale))
	}
	return total
}

// MinUnitPrice is the cheapest single unit any descriptor of the tier can charge
func (p Policy) MinUnitPrice(tier int) float64 {
	cheapest := math.Inf(1)
	for _, d := range p.Descriptors {
		if d.Tier != tier {
			continue
		}
		price := d.UnitCost
		if d.CriticalMultiplier > 0 && d.CriticalMultiplier < 1 {
			price *= d.CriticalMultiplier
		}
		if d.Scope != ScopeSoldier {
			price *= math.Min(1, p.WeekendFactor)
		}
		cheapest = math.Min(cheapest, price)
	}
	return cheapest
}

// VerifyDominance checks that the worst case of all tiers below a tier stays below a
// single violation of that tier
func (p Policy) VerifyDominance(scale Scale) error {
	var broken []string
	for tier := 1; tier < NumTiers; tier++ {
		unit := p.MinUnitPrice(tier)
		if math.IsInf(unit, 1) {
			continue
		}
		worst := 0.0
		for lower := tier + 1; lower <= NumTiers; lower++ {
			worst += p.MaxTierTotal(lower, scale)
		}
		if worst >= unit {
			broken = append(broken, fmt.Sprintf(
				"tiers below %d can reach %.4g which is not below a single tier %d unit (%.4g)",
				tier, worst, tier, unit))
		}
	}
	if len(broken) > 0 {
		return fmt.Errorf("penalty tiers do not dominate at %d soldiers x %d days: %s",
			scale.Soldiers, scale.Days, strings.Join(broken, "; "))
	}
	return nil
}

func maxUnits(scope Scope, scale Scale) int {
	switch scope {
	case ScopeSoldier:
		return scale.Soldiers
	case ScopeBlockDeficit:
		return scale.Soldiers * scale.Days * max(scale.MinBaseBlock, 1)
	default:
		return scale.Soldiers * scale.Days
	}
}
