package policy

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// NumTiers is the number of priority levels in the penalty hierarchy
const NumTiers = 4

// Tiers, highest priority first
const (
	TierRest     = 1
	TierTravel   = 2
	TierStaffing = 3
	TierFairness = 4
)

// Descriptor names used by the model builder
const (
	HomeBlockExcess   = "home_block_excess"
	BaseBlockExcess   = "base_block_excess"
	IsolatedDay       = "isolated_day"
	ShortBaseBlock    = "short_base_block"
	StaffingShortfall = "staffing_shortfall"
	BalanceDeviation  = "balance_deviation"
	IdleSoldier       = "idle_soldier"
)

// Scope tells how many units a descriptor can produce for a given roster size
type Scope string

const (
	// ScopeSoldierDay produces at most one unit per soldier per day
	ScopeSoldierDay Scope = "soldier_day"
	// ScopeBlockDeficit produces up to min_base_block_days units per soldier per day
	ScopeBlockDeficit Scope = "block_deficit"
	// ScopeSoldier produces at most one unit per soldier
	ScopeSoldier Scope = "soldier"
)

// Descriptor prices one class of violation.
// The k-th unit of a violation with reference limit L costs UnitCost, multiplied by
// CriticalMultiplier once k exceeds Tolerance + floor(CriticalThreshold * L).
type Descriptor struct {
	Name               string
	Tier               int
	Scope              Scope
	UnitCost           float64
	CriticalThreshold  float64
	CriticalMultiplier float64
	Tolerance          int
}

// Boundary returns the number of units charged at the base price for reference limit
func (d Descriptor) Boundary(limit int) int {
	return d.Tolerance + int(math.Floor(d.CriticalThreshold*float64(limit)))
}

// UnitPrice returns the undiscounted price of the k-th unit (1-based)
func (d Descriptor) UnitPrice(k, limit int) float64 {
	if d.CriticalMultiplier > 0 && k > d.Boundary(limit) {
		return d.UnitCost * d.CriticalMultiplier
	}
	return d.UnitCost
}

// Policy is the ordered penalty table plus the weekend discount
type Policy struct {
	Descriptors   []Descriptor
	WeekendFactor float64
	WeekendDays   []time.Weekday
}

// Default returns the built-in penalty table.
// Magnitudes are spaced so that each tier dominates the next one for rosters of a few
// hundred soldiers over a couple of months.
func Default() Policy {
	return Policy{
		Descriptors: []Descriptor{
			{Name: HomeBlockExcess, Tier: TierRest, Scope: ScopeSoldierDay, UnitCost: 1e18, CriticalThreshold: 0.5, CriticalMultiplier: 2},
			{Name: BaseBlockExcess, Tier: TierTravel, Scope: ScopeSoldierDay, UnitCost: 1e12, CriticalThreshold: 0.5, CriticalMultiplier: 2},
			{Name: IsolatedDay, Tier: TierTravel, Scope: ScopeSoldierDay, UnitCost: 3e12},
			{Name: ShortBaseBlock, Tier: TierTravel, Scope: ScopeBlockDeficit, UnitCost: 1e12},
			{Name: StaffingShortfall, Tier: TierStaffing, Scope: ScopeSoldierDay, UnitCost: 1e6, CriticalMultiplier: 10, Tolerance: 2},
			{Name: BalanceDeviation, Tier: TierFairness, Scope: ScopeSoldierDay, UnitCost: 1, CriticalThreshold: 0.15, CriticalMultiplier: 3},
			{Name: IdleSoldier, Tier: TierFairness, Scope: ScopeSoldier, UnitCost: 500},
		},
		WeekendFactor: 0.5,
		WeekendDays:   []time.Weekday{time.Friday, time.Saturday},
	}
}

// RequiredDescriptors lists the names the model builder prices
var RequiredDescriptors = []string{
	HomeBlockExcess,
	BaseBlockExcess,
	IsolatedDay,
	ShortBaseBlock,
	StaffingShortfall,
	BalanceDeviation,
	IdleSoldier,
}

// Validate checks the table is complete and ordered by tier
func (p Policy) Validate() error {
	seen := make(map[string]bool, len(p.Descriptors))
	prevTier := 0
	for i, d := range p.Descriptors {
		if d.Tier < 1 || d.Tier > NumTiers {
			return fmt.Errorf("descriptor %s: tier %d out of range 1-%d", d.Name, d.Tier, NumTiers)
		}
		if d.Tier < prevTier {
			return fmt.Errorf("descriptor %s at position %d breaks tier ordering", d.Name, i)
		}
		if d.UnitCost <= 0 {
			return fmt.Errorf("descriptor %s: unit cost must be positive", d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("descriptor %s is defined twice", d.Name)
		}
		seen[d.Name] = true
		prevTier = d.Tier
	}
	for _, name := range RequiredDescriptors {
		if !seen[name] {
			return fmt.Errorf("missing penalty descriptor %s", name)
		}
	}
	if p.WeekendFactor <= 0 {
		return fmt.Errorf("weekend factor must be positive")
	}
	return nil
}

// Lookup returns the descriptor with the given name
func (p Policy) Lookup(name string) (Descriptor, bool) {
	for _, d := range p.Descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// MustLookup is Lookup for names known to be present after Validate
func (p Policy) MustLookup(name string) Descriptor {
	d, ok := p.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("policy: missing descriptor %s", name))
	}
	return d
}

// IsWeekend reports whether date falls on a configured weekend day
func (p Policy) IsWeekend(date time.Time) bool {
	return slices.Contains(p.WeekendDays, date.Weekday())
}

// Price returns the price of the k-th unit, discounted when the unit falls on a weekend
func (p Policy) Price(d Descriptor, k, limit int, weekend bool) float64 {
	price := d.UnitPrice(k, limit)
	if weekend {
		price *= p.WeekendFactor
	}
	return price
}

// Cost returns the price of units k = 1..magnitude that all share the same weekend flag
func (p Policy) Cost(d Descriptor, magnitude, limit int, weekend bool) float64 {
	total := 0.0
	for k := 1; k <= magnitude; k++ {
		total += p.Price(d, k, limit, weekend)
	}
	return total
}
