package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tourquote/engine/internal/domain"
	"github.com/tourquote/engine/internal/platform/httpx"
	"github.com/tourquote/engine/internal/platform/requestctx"
	"github.com/tourquote/engine/internal/platform/textutil"
	"github.com/tourquote/engine/internal/services"
)

const quoteRefHeader = "X-Quote-Ref"

var summaryLanguages = language.NewMatcher([]language.Tag{
	language.English,
	language.German,
	language.French,
	language.Spanish,
})

// QuoteHandlers exposes the quote calculation endpoint.
type QuoteHandlers struct {
	engine        services.QuoteCalculator
	catalog       domain.Catalog
	limiter       rateLimiter
	idGen         func() string
	promotions    bool
	includeExtras bool
	maxBody       int64
	sanitizer     *bluemonday.Policy
}

// QuoteHandlerOption customises QuoteHandlers.
type QuoteHandlerOption func(*QuoteHandlers)

// NewQuoteHandlers constructs quote handlers pricing against catalog. Promotions are enabled by default.
func NewQuoteHandlers(engine services.QuoteCalculator, catalog domain.Catalog, opts ...QuoteHandlerOption) *QuoteHandlers {
	h := &QuoteHandlers{
		engine:     engine,
		catalog:    catalog,
		idGen:      func() string { return ulid.Make().String() },
		promotions: true,
		maxBody:    defaultMaxBodySize,
		sanitizer:  bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithQuoteRateLimit caps quote requests per client per minute. Zero disables limiting.
func WithQuoteRateLimit(perMinute int, clock func() time.Time) QuoteHandlerOption {
	return func(h *QuoteHandlers) {
		h.limiter = newKeyedLimiter(perMinute, time.Minute, clock)
	}
}

// WithQuoteIDGenerator overrides the quote reference generator.
func WithQuoteIDGenerator(gen func() string) QuoteHandlerOption {
	return func(h *QuoteHandlers) {
		if gen != nil {
			h.idGen = gen
		}
	}
}

// WithPromotionsEnabled toggles promo code handling. Disabled promo codes are ignored with a warning.
func WithPromotionsEnabled(enabled bool) QuoteHandlerOption {
	return func(h *QuoteHandlers) {
		h.promotions = enabled
	}
}

// WithIncludeExtrasDefault sets IncludeExtras for requests that do not specify it.
func WithIncludeExtrasDefault(include bool) QuoteHandlerOption {
	return func(h *QuoteHandlers) {
		h.includeExtras = include
	}
}

// WithQuoteMaxBodySize limits request bodies to limit bytes.
func WithQuoteMaxBodySize(limit int64) QuoteHandlerOption {
	return func(h *QuoteHandlers) {
		if limit > 0 {
			h.maxBody = limit
		}
	}
}

// Routes registers quote endpoints under the provided router.
func (h *QuoteHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/quotes", h.createQuote)
}

type seasonalPayload struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
	StartDate  string  `json:"startDate"`
	EndDate    string  `json:"endDate"`
	Priority   *int    `json:"priority,omitempty"`
}

type quoteRequest struct {
	Tour struct {
		Duration        int     `json:"duration"`
		MinPax          int     `json:"minPax"`
		MaxPax          int     `json:"maxPax"`
		CurrentPax      int     `json:"currentPax"`
		TotalDistance   float64 `json:"totalDistance"`
		FuelPrice       float64 `json:"fuelPrice"`
		TravelStartDate string  `json:"travelStartDate"`
	} `json:"tour"`
	Vehicle struct {
		ID     string `json:"id"`
		Custom *struct {
			Name            string  `json:"name"`
			DailyRate       float64 `json:"dailyRate"`
			FuelConsumption float64 `json:"fuelConsumption"`
			Markup          float64 `json:"markup"`
		} `json:"custom,omitempty"`
	} `json:"vehicle"`
	Crew []struct {
		Role              string  `json:"role"`
		DailyRate         float64 `json:"dailyRate"`
		AccommodationRate float64 `json:"accommodationRate"`
		MealAllowance     float64 `json:"mealAllowance"`
	} `json:"crew"`
	Accommodation struct {
		AverageCost float64 `json:"averageCost"`
		RoomType    string  `json:"roomType"`
		MealBasis   string  `json:"mealBasis"`
		Markup      float64 `json:"markup"`
	} `json:"accommodation"`
	Activities struct {
		AverageCost      float64           `json:"averageCost"`
		IncludedQuantity int               `json:"includedQuantity"`
		Markup           float64           `json:"markup"`
		Seasonal         []seasonalPayload `json:"seasonal"`
	} `json:"activities"`
	Meals struct {
		AverageCost      float64 `json:"averageCost"`
		IncludedQuantity int     `json:"includedQuantity"`
		Markup           float64 `json:"markup"`
	} `json:"meals"`
	ParkFees    []float64 `json:"parkFees"`
	PrePostTour struct {
		Nights       int     `json:"nights"`
		CostPerNight float64 `json:"costPerNight"`
		Markup       float64 `json:"markup"`
	} `json:"prePostTour"`
	OptionalItems []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	} `json:"optionalItems"`
	OptionalSeasonal []seasonalPayload `json:"optionalSeasonal"`
	PromoCode        *string           `json:"promoCode"`
	Currency         string            `json:"currency"`
	Rates            *struct {
		Base  string             `json:"base"`
		Rates map[string]float64 `json:"rates"`
	} `json:"rates,omitempty"`
	BookingDate   string `json:"bookingDate"`
	IncludeExtras *bool  `json:"includeExtras"`
}

type categoryPayload struct {
	Category string  `json:"category"`
	Cost     float64 `json:"cost"`
	BaseCost float64 `json:"baseCost"`
	Markup   float64 `json:"markup"`
	InTotal  bool    `json:"inTotal"`
}

type discountPayload struct {
	Type        string  `json:"type"`
	Code        string  `json:"code,omitempty"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

type groupSizePayload struct {
	Pax           int     `json:"pax"`
	CostPerPerson float64 `json:"costPerPerson"`
}

type gapPayload struct {
	Kind        string `json:"kind"`
	RequestedID string `json:"requestedId"`
	FallbackID  string `json:"fallbackId,omitempty"`
}

type quoteResponse struct {
	QuoteRef       string `json:"quoteRef"`
	Currency       string `json:"currency,omitempty"`
	Summary        string `json:"summary"`
	ExtrasIncluded bool   `json:"extrasIncluded"`
	Vehicle        struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"vehicle"`
	CrewRoles []string `json:"crewRoles,omitempty"`
	Totals    struct {
		FixedCosts           float64 `json:"fixedCosts"`
		BaseTotal            float64 `json:"baseTotal"`
		GroupDiscountPercent float64 `json:"groupDiscountPercent"`
		TotalWithDiscount    float64 `json:"totalWithDiscount"`
		CostWithPromotions   float64 `json:"costWithPromotions"`
		FinalTotal           float64 `json:"finalTotal"`
		BaselineTotal        float64 `json:"baselineTotal"`
		Profit               float64 `json:"profit"`
	} `json:"totals"`
	PerPerson struct {
		FixedCosts    float64 `json:"fixedCosts"`
		VariableCosts float64 `json:"variableCosts"`
		Cost          float64 `json:"cost"`
		DailyCost     float64 `json:"dailyCost"`
	} `json:"perPerson"`
	Promotion struct {
		DaysUntilTour        int     `json:"daysUntilTour"`
		EarlyBookingDiscount float64 `json:"earlyBookingDiscount"`
		PromoDiscount        float64 `json:"promoDiscount"`
		AppliedCode          string  `json:"appliedCode,omitempty"`
		RejectionReason      string  `json:"rejectionReason,omitempty"`
	} `json:"promotion"`
	Categories      []categoryPayload  `json:"categories"`
	Discounts       []discountPayload  `json:"discounts"`
	CostByGroupSize []groupSizePayload `json:"costByGroupSize"`
	Gaps            []gapPayload       `json:"gaps,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
}

func (h *QuoteHandlers) createQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.engine == nil {
		httpx.WriteError(ctx, w, httpx.NewError("quote_unavailable", "quote engine unavailable", http.StatusServiceUnavailable))
		return
	}
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many quote requests; retry later", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, h.maxBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}
	var req quoteRequest
	if err := decodeStrict(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cmd, warnings, err := h.buildCommand(req)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	ref := h.idGen()
	ctx = requestctx.WithQuoteRef(ctx, ref)
	w.Header().Set(quoteRefHeader, ref)

	result, err := h.engine.Calculate(ctx, cmd)
	if err != nil {
		writeQuoteError(ctx, w, err)
		return
	}

	resp := buildQuoteResponse(ref, cmd, result, warnings)
	resp.Summary = quoteSummary(summaryPrinter(r), cmd.Tour, result.Breakdown)
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *QuoteHandlers) buildCommand(req quoteRequest) (services.QuoteCommand, []string, error) {
	var warnings []string

	travelStart, err := parseRequestDate("tour.travelStartDate", req.Tour.TravelStartDate)
	if err != nil {
		return services.QuoteCommand{}, nil, err
	}
	bookingDate, err := parseRequestDate("bookingDate", req.BookingDate)
	if err != nil {
		return services.QuoteCommand{}, nil, err
	}

	cmd := services.QuoteCommand{
		Tour: domain.TourConfiguration{
			Duration:        req.Tour.Duration,
			MinPax:          req.Tour.MinPax,
			MaxPax:          req.Tour.MaxPax,
			CurrentPax:      req.Tour.CurrentPax,
			TotalDistance:   req.Tour.TotalDistance,
			FuelPrice:       req.Tour.FuelPrice,
			TravelStartDate: travelStart,
		},
		Catalog: h.catalog,
		Vehicle: domain.VehicleSelection{ID: strings.TrimSpace(req.Vehicle.ID)},
		Accommodation: domain.AccommodationProfile{
			AverageCost: req.Accommodation.AverageCost,
			RoomType:    strings.TrimSpace(req.Accommodation.RoomType),
			MealBasis:   strings.TrimSpace(req.Accommodation.MealBasis),
			Markup:      req.Accommodation.Markup,
		},
		Activities: domain.ActivityProfile{
			AverageCost:      req.Activities.AverageCost,
			IncludedQuantity: req.Activities.IncludedQuantity,
			Markup:           req.Activities.Markup,
			Seasonal:         convertSeasonalPayload(req.Activities.Seasonal),
		},
		Meals: domain.MealProfile{
			AverageCost:      req.Meals.AverageCost,
			IncludedQuantity: req.Meals.IncludedQuantity,
			Markup:           req.Meals.Markup,
		},
		ParkFees: domain.ParkFeeSchedule(req.ParkFees),
		PrePostTour: domain.PrePostTourProfile{
			Nights:       req.PrePostTour.Nights,
			CostPerNight: req.PrePostTour.CostPerNight,
			Markup:       req.PrePostTour.Markup,
		},
		OptionalSeasonal: convertSeasonalPayload(req.OptionalSeasonal),
		TargetCurrency:   strings.TrimSpace(req.Currency),
		BookingDate:      bookingDate,
		IncludeExtras:    h.includeExtras,
	}
	if req.IncludeExtras != nil {
		cmd.IncludeExtras = *req.IncludeExtras
	}

	if custom := req.Vehicle.Custom; custom != nil {
		cmd.Vehicle.ID = domain.CustomVehicleID
		cmd.Vehicle.Custom = &domain.CustomVehicle{
			Name:            h.sanitizer.Sanitize(strings.TrimSpace(custom.Name)),
			DailyRate:       custom.DailyRate,
			FuelConsumption: custom.FuelConsumption,
			Markup:          custom.Markup,
		}
	}

	for _, member := range req.Crew {
		cmd.Crew = append(cmd.Crew, domain.CrewMember{
			Role:              h.sanitizer.Sanitize(strings.TrimSpace(member.Role)),
			DailyRate:         member.DailyRate,
			AccommodationRate: member.AccommodationRate,
			MealAllowance:     member.MealAllowance,
		})
	}

	for _, selection := range req.OptionalItems {
		sel := domain.OptionalSelection{ID: strings.TrimSpace(selection.ID), Quantity: selection.Quantity}
		if services.MaxQuantityExceeded(sel, h.catalog.OptionalItems) {
			warnings = append(warnings, fmt.Sprintf("optional item %s: quantity %d exceeds the advisory maximum of %d",
				sel.ID, sel.Quantity, *h.catalog.OptionalItems[sel.ID].MaxQuantity))
		}
		cmd.OptionalItems = append(cmd.OptionalItems, sel)
	}

	if req.PromoCode != nil && strings.TrimSpace(*req.PromoCode) != "" {
		if h.promotions {
			code := *req.PromoCode
			cmd.PromoCode = &code
		} else {
			warnings = append(warnings, "promo codes are currently disabled; the code was ignored")
		}
	}

	if req.Rates != nil {
		rates, err := requestRateTable(req.Rates.Base, req.Rates.Rates)
		if err != nil {
			return services.QuoteCommand{}, nil, err
		}
		cmd.Rates = rates
	}

	return cmd, warnings, nil
}

// requestRateTable applies the catalog's rate rules to a caller-supplied table: a base code and
// finite, positive multipliers.
func requestRateTable(base string, rates map[string]float64) (*domain.CurrencyRateTable, error) {
	base = textutil.NormalizeCode(base)
	if base == "" {
		return nil, errors.New("rates.base is required")
	}
	normalized := textutil.NormalizeCodeMap(rates)
	codes := make([]string, 0, len(normalized))
	for code := range normalized {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		rate := normalized[code]
		if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
			return nil, fmt.Errorf("rates.rates.%s must be positive, got %v", code, rate)
		}
	}
	return &domain.CurrencyRateTable{Base: base, Rates: normalized}, nil
}

func convertSeasonalPayload(rules []seasonalPayload) []domain.SeasonalAdjustment {
	if rules == nil {
		return nil
	}
	out := make([]domain.SeasonalAdjustment, 0, len(rules))
	for _, rule := range rules {
		out = append(out, domain.SeasonalAdjustment{
			Name:       strings.TrimSpace(rule.Name),
			Multiplier: rule.Multiplier,
			StartDate:  rule.StartDate,
			EndDate:    rule.EndDate,
			Priority:   rule.Priority,
		})
	}
	return out
}

func buildQuoteResponse(ref string, cmd services.QuoteCommand, result services.QuoteResult, warnings []string) quoteResponse {
	b := result.Breakdown
	var resp quoteResponse
	resp.QuoteRef = ref
	resp.Currency = b.Currency
	resp.ExtrasIncluded = b.ExtrasIncluded
	resp.Warnings = warnings

	if vehicle, _ := services.ResolveVehicle(cmd.Catalog.Vehicles, cmd.Vehicle); vehicle.ID != "" {
		resp.Vehicle.ID = vehicle.ID
		resp.Vehicle.Name = vehicle.Name
	}
	for _, member := range cmd.Crew {
		resp.CrewRoles = append(resp.CrewRoles, member.Role)
	}

	resp.Totals.FixedCosts = b.FixedCosts
	resp.Totals.BaseTotal = b.BaseTotal
	resp.Totals.GroupDiscountPercent = b.GroupDiscountPercent
	resp.Totals.TotalWithDiscount = b.TotalWithDiscount
	resp.Totals.CostWithPromotions = b.CostWithPromotions
	resp.Totals.FinalTotal = b.FinalTotal
	resp.Totals.BaselineTotal = b.BaselineTotal
	resp.Totals.Profit = b.Profit

	resp.PerPerson.FixedCosts = b.FixedCostsPerPerson
	resp.PerPerson.VariableCosts = b.VariableCostsPerPerson
	resp.PerPerson.Cost = b.CostPerPerson
	resp.PerPerson.DailyCost = b.DailyCostPerPerson

	resp.Promotion.DaysUntilTour = result.Promotion.DaysUntilTour
	resp.Promotion.EarlyBookingDiscount = result.Promotion.EarlyBookingDiscount
	resp.Promotion.PromoDiscount = result.Promotion.PromoDiscount
	resp.Promotion.AppliedCode = result.Promotion.AppliedCode
	resp.Promotion.RejectionReason = result.Promotion.RejectionReason

	resp.Categories = make([]categoryPayload, 0, len(b.Categories))
	for _, c := range b.Categories {
		resp.Categories = append(resp.Categories, categoryPayload{Category: c.Category, Cost: c.Cost, BaseCost: c.BaseCost, Markup: c.Markup, InTotal: c.InTotal})
	}
	resp.Discounts = make([]discountPayload, 0, len(b.Discounts))
	for _, d := range b.Discounts {
		resp.Discounts = append(resp.Discounts, discountPayload{Type: d.Type, Code: d.Code, Description: d.Description, Amount: d.Amount})
	}
	resp.CostByGroupSize = make([]groupSizePayload, 0, len(b.CostByGroupSize))
	for _, point := range b.CostByGroupSize {
		resp.CostByGroupSize = append(resp.CostByGroupSize, groupSizePayload{Pax: point.Pax, CostPerPerson: point.CostPerPerson})
	}
	for _, gap := range b.Gaps {
		resp.Gaps = append(resp.Gaps, gapPayload{Kind: gap.Kind, RequestedID: gap.RequestedID, FallbackID: gap.FallbackID})
	}
	return resp
}

func summaryPrinter(r *http.Request) *message.Printer {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return message.NewPrinter(language.English)
	}
	tag, _, _ := summaryLanguages.Match(tags...)
	return message.NewPrinter(tag)
}

// quoteSummary renders a one-line, locale-formatted description of the quote.
func quoteSummary(p *message.Printer, tour domain.TourConfiguration, b domain.QuoteBreakdown) string {
	currency := b.Currency
	if currency == "" {
		currency = "-"
	}
	return p.Sprintf("%d travellers, %d days: %.2f %s total, %.2f per person",
		tour.CurrentPax, tour.Duration, b.FinalTotal, currency, b.CostPerPerson)
}

func writeQuoteError(ctx context.Context, w http.ResponseWriter, err error) {
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_quote", vErr.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"field": vErr.Field}))
	case errors.Is(err, services.ErrQuoteValidation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_quote", err.Error(), http.StatusBadRequest))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		httpx.WriteError(ctx, w, httpx.NewError("quote_timeout", "quote calculation was cancelled", http.StatusServiceUnavailable))
	default:
		requestctx.Logger(ctx).Error("quote calculation failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "failed to calculate quote", http.StatusInternalServerError))
	}
}
