package main

import (
	"testing"

	"github.com/tourquote/engine/internal/domain"
	"github.com/tourquote/engine/internal/platform/config"
)

func TestRateTable(t *testing.T) {
	catalogRates := domain.CurrencyRateTable{Base: "USD", Rates: map[string]float64{"EUR": 0.9}}

	got := rateTable(config.QuoteConfig{DefaultCurrency: "USD"}, catalogRates)
	if got.Base != "USD" || got.Rates["EUR"] != 0.9 {
		t.Fatalf("expected catalog rates without overrides, got %+v", got)
	}

	got = rateTable(config.QuoteConfig{DefaultCurrency: "EUR", Rates: map[string]float64{"GBP": 0.85}}, catalogRates)
	if got.Base != "EUR" {
		t.Fatalf("expected configured base EUR, got %s", got.Base)
	}
	if _, ok := got.Rates["EUR"]; ok || got.Rates["GBP"] != 0.85 {
		t.Fatalf("expected configured rates only, got %+v", got.Rates)
	}
}

func TestGroupDiscountPolicy(t *testing.T) {
	policy := groupDiscountPolicy(map[int]float64{4: 3, 12: 15})
	cases := map[int]float64{3: 0, 4: 3, 11: 3, 12: 15, 30: 15}
	for pax, want := range cases {
		if got := policy.DiscountPercent(pax); got != want {
			t.Fatalf("pax %d: expected %v%%, got %v%%", pax, want, got)
		}
	}

	defaults := groupDiscountPolicy(nil)
	if got := defaults.DiscountPercent(10); got != 10 {
		t.Fatalf("expected default 10%% tier, got %v", got)
	}
}
