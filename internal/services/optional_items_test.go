package services

import (
	"errors"
	"testing"
	"time"

	"github.com/tourquote/engine/internal/domain"
)

func sampleOptionalItems() map[string]domain.OptionalItem {
	return map[string]domain.OptionalItem{
		"snorkel": {ID: "snorkel", Name: "Snorkel hire", Category: "equipment", Cost: 25, MaxQuantity: intPtr(2)},
		"dive": {
			ID:       "dive",
			Name:     "Reef dive",
			Category: "activity",
			Cost:     100,
			Seasonal: []domain.SeasonalAdjustment{{Name: "peak", Multiplier: 1.5, StartDate: "07-01", EndDate: "08-31"}},
		},
	}
}

func TestOptionalItemsCost(t *testing.T) {
	items := sampleOptionalItems()
	selections := []domain.OptionalSelection{
		{ID: "snorkel", Quantity: 2},
		{ID: "dive", Quantity: 1},
		{ID: "helicopter", Quantity: 3},
	}
	override := []domain.SeasonalAdjustment{{Name: "july", Multiplier: 2, StartDate: "07-01", EndDate: "07-31"}}

	cases := []struct {
		name     string
		date     time.Time
		override []domain.SeasonalAdjustment
		want     float64
	}{
		{name: "off season", date: date(2026, time.March, 1), want: 200 + 400},
		{name: "peak season", date: date(2026, time.July, 15), want: 200 + 600},
		{name: "override applies to items without rules", date: date(2026, time.July, 15), override: override, want: 400 + 600},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := OptionalItemsCost(tc.date, selections, items, 4, tc.override)
			if err != nil {
				t.Fatalf("OptionalItemsCost error: %v", err)
			}
			if !approxEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestOptionalItemsCost_EmptySelection(t *testing.T) {
	got, err := OptionalItemsCost(date(2026, time.July, 15), nil, sampleOptionalItems(), 4, nil)
	if err != nil || got != 0 {
		t.Fatalf("expected zero cost, got %v (%v)", got, err)
	}
}

func TestOptionalItemsCost_RejectsNegativeQuantity(t *testing.T) {
	_, err := OptionalItemsCost(date(2026, time.July, 15), []domain.OptionalSelection{{ID: "dive", Quantity: -1}}, sampleOptionalItems(), 2, nil)
	if !errors.Is(err, ErrQuoteValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMaxQuantityExceeded_IsAdvisory(t *testing.T) {
	items := sampleOptionalItems()
	if !MaxQuantityExceeded(domain.OptionalSelection{ID: "snorkel", Quantity: 3}, items) {
		t.Fatalf("expected snorkel quantity 3 to exceed advisory limit")
	}
	if MaxQuantityExceeded(domain.OptionalSelection{ID: "snorkel", Quantity: 2}, items) {
		t.Fatalf("expected quantity at the limit to be allowed")
	}
	if MaxQuantityExceeded(domain.OptionalSelection{ID: "dive", Quantity: 50}, items) {
		t.Fatalf("expected items without a limit to never exceed")
	}

	got, err := OptionalItemsCost(date(2026, time.March, 1), []domain.OptionalSelection{{ID: "snorkel", Quantity: 3}}, items, 1, nil)
	if err != nil || got != 75 {
		t.Fatalf("expected over-limit quantity to be priced unclamped (75), got %v (%v)", got, err)
	}
}
