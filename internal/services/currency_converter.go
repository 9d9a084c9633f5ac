package services

import (
	"strings"

	"golang.org/x/text/currency"

	"github.com/tourquote/engine/internal/domain"
)

// Convert multiplies amount by the rate of target. It returns amount unchanged when target is empty,
// the table is nil, or the table has no rate for target.
func Convert(amount float64, target string, table *domain.CurrencyRateTable) float64 {
	rate, ok := LookupRate(target, table)
	if !ok {
		return amount
	}
	return amount * rate
}

// LookupRate finds the rate for target, matching ISO codes case-insensitively.
func LookupRate(target string, table *domain.CurrencyRateTable) (float64, bool) {
	code := CanonicalCurrency(target)
	if code == "" || table == nil || len(table.Rates) == 0 {
		return 0, false
	}
	if rate, ok := table.Rates[code]; ok {
		return rate, true
	}
	for key, rate := range table.Rates {
		if CanonicalCurrency(key) == code {
			return rate, true
		}
	}
	return 0, false
}

// CanonicalCurrency returns the ISO 4217 form of code, or its trimmed upper-case form when
// code is not a known ISO currency.
func CanonicalCurrency(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ""
	}
	if unit, err := currency.ParseISO(trimmed); err == nil {
		return unit.String()
	}
	return strings.ToUpper(trimmed)
}
