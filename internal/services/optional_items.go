package services

import (
	"strings"
	"time"

	"github.com/tourquote/engine/internal/domain"
)

// OptionalItemsCost sums the selected add-ons for pax people. Unknown IDs contribute nothing.
// Items without their own seasonal rules use overrideRules.
func OptionalItemsCost(date time.Time, selections []domain.OptionalSelection, items map[string]domain.OptionalItem, pax int, overrideRules []domain.SeasonalAdjustment) (float64, error) {
	var total float64
	for _, selection := range selections {
		item, ok := items[strings.TrimSpace(selection.ID)]
		if !ok {
			continue
		}
		if err := checkAmount("optionalItems."+item.ID+".cost", item.Cost); err != nil {
			return 0, err
		}
		if selection.Quantity < 0 {
			return 0, newValidationError("optionalItems."+item.ID+".quantity", "cannot be negative")
		}
		rules := item.Seasonal
		if rules == nil {
			rules = overrideRules
		}
		multiplier, err := ResolveCombined(date, rules)
		if err != nil {
			return 0, err
		}
		total += multiplier * item.Cost * float64(selection.Quantity) * float64(pax)
	}
	return total, nil
}

// MaxQuantityExceeded reports whether a selection asks for more than the item's advisory limit.
func MaxQuantityExceeded(selection domain.OptionalSelection, items map[string]domain.OptionalItem) bool {
	item, ok := items[strings.TrimSpace(selection.ID)]
	if !ok || item.MaxQuantity == nil {
		return false
	}
	return selection.Quantity > *item.MaxQuantity
}
