package services

import "sort"

// GroupDiscountTier grants Percent when the passenger count is at least MinPax.
type GroupDiscountTier struct {
	MinPax  int
	Percent float64
}

// GroupDiscountPolicy maps passenger counts to a percentage discount.
type GroupDiscountPolicy struct {
	tiers []GroupDiscountTier
}

// DefaultGroupDiscountPolicy grants 5% for 6-9 passengers and 10% from 10 passengers.
func DefaultGroupDiscountPolicy() GroupDiscountPolicy {
	return NewGroupDiscountPolicy([]GroupDiscountTier{
		{MinPax: 6, Percent: 5},
		{MinPax: 10, Percent: 10},
	})
}

// NewGroupDiscountPolicy builds a policy from tiers in any order.
func NewGroupDiscountPolicy(tiers []GroupDiscountTier) GroupDiscountPolicy {
	sorted := make([]GroupDiscountTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPax > sorted[j].MinPax
	})
	return GroupDiscountPolicy{tiers: sorted}
}

// DiscountPercent returns the discount for pax passengers.
func (p GroupDiscountPolicy) DiscountPercent(pax int) float64 {
	for _, tier := range p.tiers {
		if pax >= tier.MinPax {
			return tier.Percent
		}
	}
	return 0
}

// Apply reduces total by the discount for pax passengers.
func (p GroupDiscountPolicy) Apply(total float64, pax int) (float64, float64) {
	percent := p.DiscountPercent(pax)
	return total * (1 - percent/100), percent
}
