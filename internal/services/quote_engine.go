package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tourquote/engine/internal/domain"
)

const instrumentationName = "github.com/tourquote/engine/internal/services"

// Default tour size limits. Quotes allocate per pax and per day, so both are bounded.
const (
	DefaultMaxPax      = 500
	DefaultMaxDuration = 365
)

// Category names used in the quote breakdown.
const (
	CategoryVehicle       = "vehicle"
	CategoryFuel          = "fuel"
	CategoryCrew          = "crew"
	CategoryAccommodation = "accommodation"
	CategoryActivities    = "activities"
	CategoryMeals         = "meals"
	CategoryParkFees      = "park_fees"
	CategoryPrePostTour   = "pre_post_tour"
	CategoryOptionalItems = "optional_items"
)

// QuoteEngine combines the cost calculators, discounts and currency conversion into a tour quote.
// It holds no mutable state and is safe for concurrent use.
type QuoteEngine struct {
	promotion     *PromotionEngine
	groupDiscount GroupDiscountPolicy
	defaultRates  *domain.CurrencyRateTable
	limits        TourLimits
	now           func() time.Time
	logger        func(context.Context, string, map[string]any)
	tracer        trace.Tracer

	quotes        metric.Int64Counter
	quotesEnabled bool
	totals        metric.Float64Histogram
	totalsEnabled bool
}

// QuoteEngineDeps bundles dependencies required to construct a QuoteEngine.
type QuoteEngineDeps struct {
	Promotion     *PromotionEngine
	GroupDiscount *GroupDiscountPolicy
	DefaultRates  *domain.CurrencyRateTable
	Limits        TourLimits
	Now           func() time.Time
	Logger        func(context.Context, string, map[string]any)
	Meter         metric.Meter
	Tracer        trace.Tracer
}

// TourLimits caps the tour size accepted by Calculate. Zero fields take the package defaults.
type TourLimits struct {
	MaxPax      int
	MaxDuration int
}

func (l TourLimits) withDefaults() TourLimits {
	if l.MaxPax <= 0 {
		l.MaxPax = DefaultMaxPax
	}
	if l.MaxDuration <= 0 {
		l.MaxDuration = DefaultMaxDuration
	}
	return l
}

// NewQuoteEngine wires a QuoteEngine, defaulting the clock, logger, group discount policy and telemetry.
func NewQuoteEngine(deps QuoteEngineDeps) (*QuoteEngine, error) {
	if deps.Promotion == nil {
		return nil, ErrPromotionEngineMissing
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	policy := DefaultGroupDiscountPolicy()
	if deps.GroupDiscount != nil {
		policy = *deps.GroupDiscount
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}

	quotes, quotesErr := meter.Int64Counter(
		"quotes.calculated",
		metric.WithDescription("Count of tour quotes calculated"),
	)
	if quotesErr != nil {
		logger(context.Background(), "quote_metric_unavailable", map[string]any{"metric": "quotes.calculated", "error": quotesErr.Error()})
	}
	totals, totalsErr := meter.Float64Histogram(
		"quotes.final_total",
		metric.WithDescription("Final quoted totals in the requested currency"),
	)
	if totalsErr != nil {
		logger(context.Background(), "quote_metric_unavailable", map[string]any{"metric": "quotes.final_total", "error": totalsErr.Error()})
	}

	return &QuoteEngine{
		promotion:     deps.Promotion,
		groupDiscount: policy,
		defaultRates:  deps.DefaultRates,
		limits:        deps.Limits.withDefaults(),
		now: func() time.Time {
			return now().UTC()
		},
		logger:        logger,
		tracer:        tracer,
		quotes:        quotes,
		quotesEnabled: quotesErr == nil,
		totals:        totals,
		totalsEnabled: totalsErr == nil,
	}, nil
}

// QuoteCommand carries every input needed to quote a tour. The engine never mutates it.
type QuoteCommand struct {
	Tour          domain.TourConfiguration
	Catalog       domain.Catalog
	Vehicle       domain.VehicleSelection
	Crew          []domain.CrewMember
	Accommodation domain.AccommodationProfile
	Activities    domain.ActivityProfile
	Meals         domain.MealProfile
	ParkFees      domain.ParkFeeSchedule
	PrePostTour   domain.PrePostTourProfile

	OptionalItems    []domain.OptionalSelection
	OptionalSeasonal []domain.SeasonalAdjustment

	PromoCode      *string
	TargetCurrency string
	// Rates overrides the engine's default rate table.
	Rates *domain.CurrencyRateTable
	// BookingDate defaults to the engine clock.
	BookingDate time.Time
	// IncludeExtras folds activity, optional item and pre/post-tour costs into the base total.
	// Left false, those costs are reported but excluded, matching the historical totals.
	IncludeExtras bool
}

// QuoteResult is the outcome of QuoteEngine.Calculate.
type QuoteResult struct {
	Breakdown domain.QuoteBreakdown
	Promotion PromotionOutcome
}

type categoryCosts struct {
	vehicle, fuel, crew, accommodation, activity, meal, parkFees, prePost, optional float64
}

// Calculate quotes the tour described by cmd.
func (e *QuoteEngine) Calculate(ctx context.Context, cmd QuoteCommand) (result QuoteResult, err error) {
	ctx, span := e.tracer.Start(ctx, "QuoteEngine.Calculate")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := validateTour(cmd.Tour, e.limits); err != nil {
		return QuoteResult{}, err
	}
	tour := cmd.Tour
	pax := tour.CurrentPax

	var gaps []domain.ConfigurationGap
	var costs categoryCosts

	vehicle, found := ResolveVehicle(cmd.Catalog.Vehicles, cmd.Vehicle)
	if !found && strings.TrimSpace(cmd.Vehicle.ID) != "" {
		gaps = append(gaps, domain.ConfigurationGap{Kind: GapVehicle, RequestedID: cmd.Vehicle.ID, FallbackID: vehicle.ID})
	}
	if vehicle != (domain.VehicleProfile{}) {
		if costs.vehicle, err = VehicleCost(vehicle, tour.Duration); err != nil {
			return QuoteResult{}, err
		}
		if costs.fuel, err = FuelCost(vehicle, tour.TotalDistance, tour.FuelPrice); err != nil {
			return QuoteResult{}, err
		}
	}
	if costs.crew, err = CrewCost(cmd.Crew, tour.Duration); err != nil {
		return QuoteResult{}, err
	}
	fixedCosts := costs.vehicle + costs.fuel + costs.crew

	room, roomFound := ResolveRoomType(cmd.Catalog.RoomTypes, cmd.Accommodation.RoomType)
	if !roomFound && strings.TrimSpace(cmd.Accommodation.RoomType) != "" {
		gaps = append(gaps, domain.ConfigurationGap{Kind: GapRoomType, RequestedID: cmd.Accommodation.RoomType, FallbackID: room.ID})
	}
	basis, basisFound := ResolveMealBasis(cmd.Catalog.MealBases, cmd.Accommodation.MealBasis)
	if !basisFound && strings.TrimSpace(cmd.Accommodation.MealBasis) != "" {
		gaps = append(gaps, domain.ConfigurationGap{Kind: GapMealBasis, RequestedID: cmd.Accommodation.MealBasis, FallbackID: basis.ID})
	}
	accommodationRules := make([]domain.SeasonalAdjustment, 0, len(room.Seasonal)+len(basis.Seasonal))
	accommodationRules = append(accommodationRules, room.Seasonal...)
	accommodationRules = append(accommodationRules, basis.Seasonal...)
	accommodationSeason, err := ResolveCombined(tour.TravelStartDate, accommodationRules)
	if err != nil {
		return QuoteResult{}, err
	}
	if costs.accommodation, err = AccommodationCost(cmd.Accommodation.AverageCost*accommodationSeason, room, basis, cmd.Accommodation.Markup, tour.Duration, pax); err != nil {
		return QuoteResult{}, err
	}

	activitySeason, err := ResolveSingle(tour.TravelStartDate, cmd.Activities.Seasonal)
	if err != nil {
		return QuoteResult{}, err
	}
	if costs.activity, err = ActivityCost(cmd.Activities.AverageCost*activitySeason, cmd.Activities.IncludedQuantity, pax, cmd.Activities.Markup); err != nil {
		return QuoteResult{}, err
	}
	if costs.meal, err = MealCost(cmd.Meals.AverageCost, cmd.Meals.IncludedQuantity, pax, cmd.Meals.Markup); err != nil {
		return QuoteResult{}, err
	}
	if costs.parkFees, err = ParkFeesCost(normalizeParkFees(cmd.ParkFees, tour.Duration), pax); err != nil {
		return QuoteResult{}, err
	}
	if costs.prePost, err = PrePostTourCost(cmd.PrePostTour.CostPerNight, cmd.PrePostTour.Nights, cmd.PrePostTour.Markup); err != nil {
		return QuoteResult{}, err
	}
	if costs.optional, err = OptionalItemsCost(tour.TravelStartDate, cmd.OptionalItems, cmd.Catalog.OptionalItems, pax, cmd.OptionalSeasonal); err != nil {
		return QuoteResult{}, err
	}

	baseTotal := fixedCosts + costs.accommodation + costs.meal + costs.parkFees
	if cmd.IncludeExtras {
		baseTotal += costs.activity + costs.optional + costs.prePost
	}

	totalWithDiscount, discountPercent := e.groupDiscount.Apply(baseTotal, pax)

	bookingDate := cmd.BookingDate
	if bookingDate.IsZero() {
		bookingDate = e.now()
	}
	promoTable := cmd.Catalog.PromoCodes
	outcome, err := e.promotion.Apply(ApplyPromotionsCommand{
		Cost:          totalWithDiscount,
		BookingDate:   bookingDate,
		TourStartDate: tour.TravelStartDate,
		PromoCode:     cmd.PromoCode,
		PromoTable:    promoTable,
	})
	if err != nil {
		return QuoteResult{}, err
	}
	if outcome.RejectionReason != "" {
		e.logger(ctx, "quote_promo_rejected", map[string]any{"reason": outcome.RejectionReason, "code": normalizePromoCode(derefString(cmd.PromoCode))})
	}

	rates := cmd.Rates
	if rates == nil {
		rates = e.defaultRates
	}
	finalTotal := Convert(outcome.Cost, cmd.TargetCurrency, rates)
	currencyCode := ""
	if _, ok := LookupRate(cmd.TargetCurrency, rates); ok {
		currencyCode = CanonicalCurrency(cmd.TargetCurrency)
	} else if rates != nil {
		currencyCode = CanonicalCurrency(rates.Base)
	}

	// The per-person figures and profit use the quote without promo code or currency conversion.
	baselineTotal := outcome.Cost + outcome.PromoDiscount

	fpax := float64(pax)
	variablePerPerson := (costs.accommodation + costs.activity + costs.meal + costs.parkFees) / fpax
	costPerPerson := baselineTotal / fpax

	categories := buildCategoryCosts(costs, vehicle, cmd, cmd.IncludeExtras)
	var baseCostSum float64
	for _, category := range categories {
		if category.InTotal {
			baseCostSum += category.BaseCost
		}
	}

	breakdown := domain.QuoteBreakdown{
		Currency:               currencyCode,
		VehicleCost:            costs.vehicle,
		FuelCost:               costs.fuel,
		CrewCost:               costs.crew,
		AccommodationCost:      costs.accommodation,
		ActivityCost:           costs.activity,
		MealCost:               costs.meal,
		ParkFeesCost:           costs.parkFees,
		PrePostTourCost:        costs.prePost,
		OptionalItemsCost:      costs.optional,
		FixedCosts:             fixedCosts,
		BaseTotal:              baseTotal,
		GroupDiscountPercent:   discountPercent,
		TotalWithDiscount:      totalWithDiscount,
		CostWithPromotions:     outcome.Cost,
		FinalTotal:             finalTotal,
		BaselineTotal:          baselineTotal,
		FixedCostsPerPerson:    fixedCosts / fpax,
		VariableCostsPerPerson: variablePerPerson,
		CostPerPerson:          costPerPerson,
		DailyCostPerPerson:     costPerPerson / float64(tour.Duration),
		CostByGroupSize:        CostByGroupSize(fixedCosts, variablePerPerson, tour.MinPax, tour.MaxPax),
		Profit:                 baselineTotal - baseCostSum,
		ExtrasIncluded:         cmd.IncludeExtras,
		Categories:             categories,
		Discounts:              groupDiscountBreakdown(baseTotal, totalWithDiscount, discountPercent, outcome.Discounts),
		Gaps:                   gaps,
	}

	for _, gap := range gaps {
		e.logger(ctx, "quote_configuration_gap", map[string]any{"kind": gap.Kind, "requested": gap.RequestedID, "fallback": gap.FallbackID})
	}
	e.logger(ctx, "quote_calculated", map[string]any{"pax": pax, "duration": tour.Duration, "finalTotal": finalTotal, "currency": currencyCode})

	span.SetAttributes(
		attribute.Int("quote.pax", pax),
		attribute.Int("quote.duration", tour.Duration),
		attribute.Float64("quote.final_total", finalTotal),
		attribute.String("quote.currency", currencyCode),
		attribute.Bool("quote.extras_included", cmd.IncludeExtras),
	)
	attrs := metric.WithAttributes(attribute.String("currency", currencyCode))
	if e.quotesEnabled {
		e.quotes.Add(ctx, 1, attrs)
	}
	if e.totalsEnabled {
		e.totals.Record(ctx, finalTotal, attrs)
	}

	return QuoteResult{Breakdown: breakdown, Promotion: outcome}, nil
}

// CostByGroupSize re-amortises fixed costs over every group size between minPax and maxPax while
// holding the variable cost per person at its current-group value.
func CostByGroupSize(fixedCosts, variablePerPerson float64, minPax, maxPax int) []domain.GroupSizeCost {
	if minPax < 1 || maxPax < minPax {
		return nil
	}
	curve := make([]domain.GroupSizeCost, 0, maxPax-minPax+1)
	for p := minPax; p <= maxPax; p++ {
		curve = append(curve, domain.GroupSizeCost{
			Pax:           p,
			CostPerPerson: fixedCosts/float64(p) + variablePerPerson,
		})
	}
	return curve
}

func validateTour(tour domain.TourConfiguration, limits TourLimits) error {
	switch {
	case tour.Duration < 1:
		return newValidationError("tour.duration", "must be at least 1 day")
	case tour.Duration > limits.MaxDuration:
		return newValidationError("tour.duration", "must be at most %d days", limits.MaxDuration)
	case tour.MaxPax > limits.MaxPax:
		return newValidationError("tour.maxPax", "must be at most %d", limits.MaxPax)
	case tour.CurrentPax < 1:
		return newValidationError("tour.currentPax", "must be at least 1")
	case tour.MinPax < 1:
		return newValidationError("tour.minPax", "must be at least 1")
	case tour.MinPax > tour.CurrentPax || tour.CurrentPax > tour.MaxPax:
		return newValidationError("tour.currentPax", "must satisfy minPax <= currentPax <= maxPax (got %d <= %d <= %d)", tour.MinPax, tour.CurrentPax, tour.MaxPax)
	case tour.TravelStartDate.IsZero():
		return newValidationError("tour.travelStartDate", "is required")
	}
	if err := checkAmount("tour.totalDistance", tour.TotalDistance); err != nil {
		return err
	}
	return checkAmount("tour.fuelPrice", tour.FuelPrice)
}

// normalizeParkFees returns a copy sized to the tour duration. Missing days cost nothing.
func normalizeParkFees(fees domain.ParkFeeSchedule, duration int) domain.ParkFeeSchedule {
	out := make(domain.ParkFeeSchedule, duration)
	copy(out, fees)
	return out
}

func buildCategoryCosts(costs categoryCosts, vehicle domain.VehicleProfile, cmd QuoteCommand, includeExtras bool) []domain.CategoryCost {
	entry := func(name string, cost, markup float64, inTotal bool) domain.CategoryCost {
		return domain.CategoryCost{Category: name, Cost: cost, Markup: markup, BaseCost: BaseCost(cost, markup), InTotal: inTotal}
	}
	return []domain.CategoryCost{
		entry(CategoryVehicle, costs.vehicle, vehicle.Markup, true),
		entry(CategoryFuel, costs.fuel, 0, true),
		entry(CategoryCrew, costs.crew, 0, true),
		entry(CategoryAccommodation, costs.accommodation, cmd.Accommodation.Markup, true),
		entry(CategoryMeals, costs.meal, cmd.Meals.Markup, true),
		entry(CategoryParkFees, costs.parkFees, 0, true),
		entry(CategoryActivities, costs.activity, cmd.Activities.Markup, includeExtras),
		entry(CategoryOptionalItems, costs.optional, 0, includeExtras),
		entry(CategoryPrePostTour, costs.prePost, cmd.PrePostTour.Markup, includeExtras),
	}
}

func groupDiscountBreakdown(baseTotal, discounted, percent float64, promotions []domain.DiscountBreakdown) []domain.DiscountBreakdown {
	out := make([]domain.DiscountBreakdown, 0, len(promotions)+1)
	if percent > 0 {
		out = append(out, domain.DiscountBreakdown{
			Type:        "group",
			Description: "group size discount",
			Amount:      baseTotal - discounted,
		})
	}
	return append(out, promotions...)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
