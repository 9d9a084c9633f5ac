package services

import (
	"context"

	"github.com/tourquote/engine/internal/domain"
)

// QuoteCalculator prices a tour. *QuoteEngine is the production implementation.
type QuoteCalculator interface {
	Calculate(ctx context.Context, cmd QuoteCommand) (QuoteResult, error)
}

// PromoCodeChecker reports promo code validity without failing. *PromotionEngine implements it.
type PromoCodeChecker interface {
	CheckPromoCode(code string, table map[string]domain.PromoCode, cost float64) PromoCodeCheck
}

var (
	_ QuoteCalculator  = (*QuoteEngine)(nil)
	_ PromoCodeChecker = (*PromotionEngine)(nil)
)
