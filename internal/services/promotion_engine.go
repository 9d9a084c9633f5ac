package services

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tourquote/engine/internal/domain"
	"github.com/tourquote/engine/internal/platform/textutil"
)

const (
	earlyBookingThresholdDays = 90
	earlyBookingRate          = 0.03
	earlyBookingCap           = 100.0
	percentagePromoCap        = 500.0
	fixedAmountPromoCap       = 300.0

	minPromoCodeLength = 3
	maxPromoCodeLength = 20
)

// Reasons reported when a promo code is not applied.
const (
	PromoReasonNotFound      = "not_found"
	PromoReasonInvalidFormat = "invalid_format"
	PromoReasonInvalidWindow = "invalid_window"
	PromoReasonNotStarted    = "not_started"
	PromoReasonExpired       = "expired"
	PromoReasonMinimumSpend  = "minimum_spend_not_met"
	PromoReasonUsageLimit    = "usage_limit_reached"
	PromoReasonUnknownType   = "unknown_type"
)

var promoDateLayouts = []string{time.RFC3339, "2006-01-02"}

// PromotionEngineDeps bundles dependencies required to construct a PromotionEngine.
type PromotionEngineDeps struct {
	Clock func() time.Time
}

// PromotionEngine applies early-booking and promo code discounts.
type PromotionEngine struct {
	clock func() time.Time
}

// NewPromotionEngine wires a PromotionEngine. The clock decides promo validity windows.
func NewPromotionEngine(deps PromotionEngineDeps) *PromotionEngine {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &PromotionEngine{
		clock: func() time.Time { return clock().UTC() },
	}
}

// ApplyPromotionsCommand carries the running cost and the promo inputs.
type ApplyPromotionsCommand struct {
	Cost          float64
	BookingDate   time.Time
	TourStartDate time.Time
	PromoCode     *string
	PromoTable    map[string]domain.PromoCode
}

// PromotionOutcome reports the discounted cost and what was applied.
type PromotionOutcome struct {
	Cost                 float64
	DaysUntilTour        int
	EarlyBookingDiscount float64
	PromoDiscount        float64
	AppliedCode          string
	RejectionReason      string
	Discounts            []domain.DiscountBreakdown
}

// PromoCodeCheck is the result of a non-failing promo code lookup used for UI feedback.
type PromoCodeCheck struct {
	Code   string
	Valid  bool
	Reason string
	Type   domain.PromoType
	Value  float64
}

// Apply applies the early-booking discount and then the promo code, each against the running cost.
func (e *PromotionEngine) Apply(cmd ApplyPromotionsCommand) (PromotionOutcome, error) {
	if cmd.BookingDate.IsZero() {
		return PromotionOutcome{}, newValidationError("bookingDate", "is required")
	}
	if cmd.TourStartDate.IsZero() {
		return PromotionOutcome{}, newValidationError("tourStartDate", "is required")
	}
	if err := checkAmount("cost", cmd.Cost); err != nil {
		return PromotionOutcome{}, err
	}

	outcome := PromotionOutcome{Cost: cmd.Cost}
	outcome.DaysUntilTour = daysBetween(cmd.BookingDate, cmd.TourStartDate)
	if outcome.DaysUntilTour >= earlyBookingThresholdDays {
		discount := math.Min(outcome.Cost*earlyBookingRate, earlyBookingCap)
		outcome.Cost -= discount
		outcome.EarlyBookingDiscount = discount
		outcome.Discounts = append(outcome.Discounts, domain.DiscountBreakdown{
			Type:        "early_booking",
			Description: "booked at least 90 days before departure",
			Amount:      discount,
		})
	}

	if cmd.PromoCode == nil || strings.TrimSpace(*cmd.PromoCode) == "" {
		return outcome, nil
	}

	promo, reason, err := e.evaluatePromo(*cmd.PromoCode, cmd.PromoTable, outcome.Cost)
	if err != nil {
		return PromotionOutcome{}, err
	}
	if reason != "" {
		outcome.RejectionReason = reason
		return outcome, nil
	}

	var discount float64
	switch promo.Type {
	case domain.PromoTypePercentage:
		discount = math.Min(outcome.Cost*promo.Value/100, percentagePromoCap)
	case domain.PromoTypeFixedAmount:
		discount = math.Min(promo.Value, fixedAmountPromoCap)
	}
	if discount < 0 {
		discount = 0
	}
	if discount > outcome.Cost {
		discount = outcome.Cost
	}
	outcome.Cost -= discount
	outcome.PromoDiscount = discount
	outcome.AppliedCode = promo.Code
	outcome.Discounts = append(outcome.Discounts, domain.DiscountBreakdown{
		Type:        "promotion",
		Code:        promo.Code,
		Description: string(promo.Type),
		Amount:      discount,
	})
	return outcome, nil
}

// CheckPromoCode reports whether code would be applied to cost right now. It never fails;
// malformed codes or windows are reported through Reason.
func (e *PromotionEngine) CheckPromoCode(code string, table map[string]domain.PromoCode, cost float64) PromoCodeCheck {
	promo, reason, _ := e.evaluatePromo(code, table, cost)
	check := PromoCodeCheck{
		Code:   normalizePromoCode(code),
		Valid:  reason == "",
		Reason: reason,
	}
	if reason != PromoReasonNotFound {
		check.Type = promo.Type
		check.Value = promo.Value
	}
	return check
}

// evaluatePromo returns the promo and an empty reason when it can be applied. Malformed codes and
// validity windows produce a ValidationError together with the matching reason.
func (e *PromotionEngine) evaluatePromo(code string, table map[string]domain.PromoCode, cost float64) (domain.PromoCode, string, error) {
	promo, ok := lookupPromo(table, code)
	if !ok {
		return domain.PromoCode{}, PromoReasonNotFound, nil
	}

	normalized := normalizePromoCode(code)
	length := utf8.RuneCountInString(normalized)
	if length < minPromoCodeLength || length > maxPromoCodeLength {
		return promo, PromoReasonInvalidFormat, newValidationError("promoCode", "invalid promo code format")
	}

	start, hasStart, err := parsePromoDate(promo.StartDate)
	if err != nil {
		return promo, PromoReasonInvalidWindow, newValidationError("promoCode.startDate", "%v", err)
	}
	end, hasEnd, err := parsePromoDate(promo.EndDate)
	if err != nil {
		return promo, PromoReasonInvalidWindow, newValidationError("promoCode.endDate", "%v", err)
	}

	now := e.clock()
	switch {
	case hasStart && now.Before(start):
		return promo, PromoReasonNotStarted, nil
	case hasEnd && now.After(end):
		return promo, PromoReasonExpired, nil
	case promo.MinimumSpend != nil && cost < *promo.MinimumSpend:
		return promo, PromoReasonMinimumSpend, nil
	case promo.UsageLimit != nil && promo.UsedCount >= *promo.UsageLimit:
		return promo, PromoReasonUsageLimit, nil
	case promo.Type != domain.PromoTypePercentage && promo.Type != domain.PromoTypeFixedAmount:
		return promo, PromoReasonUnknownType, nil
	}
	if promo.Code == "" {
		promo.Code = normalized
	}
	return promo, "", nil
}

func lookupPromo(table map[string]domain.PromoCode, code string) (domain.PromoCode, bool) {
	if len(table) == 0 {
		return domain.PromoCode{}, false
	}
	if promo, ok := table[code]; ok {
		return promo, true
	}
	normalized := normalizePromoCode(code)
	if normalized == "" {
		return domain.PromoCode{}, false
	}
	for key, promo := range table {
		if normalizePromoCode(key) == normalized {
			return promo, true
		}
	}
	return domain.PromoCode{}, false
}

func normalizePromoCode(code string) string {
	return textutil.NormalizeCode(code)
}

func parsePromoDate(value string) (time.Time, bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false, nil
	}
	var lastErr error
	for _, layout := range promoDateLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err == nil {
			return parsed.UTC(), true, nil
		}
		lastErr = err
	}
	return time.Time{}, false, lastErr
}

// daysBetween returns the whole days from booking to start, rounded down.
func daysBetween(booking, start time.Time) int {
	return int(math.Floor(start.Sub(booking).Hours() / 24))
}
