package domain

// QuoteBreakdown captures the aggregated results of quoting a tour.
type QuoteBreakdown struct {
	Currency string

	VehicleCost       float64
	FuelCost          float64
	CrewCost          float64
	AccommodationCost float64
	ActivityCost      float64
	MealCost          float64
	ParkFeesCost      float64
	PrePostTourCost   float64
	OptionalItemsCost float64

	FixedCosts           float64
	BaseTotal            float64
	GroupDiscountPercent float64
	TotalWithDiscount    float64
	CostWithPromotions   float64
	FinalTotal           float64

	// BaselineTotal is the total without promo code or currency conversion.
	BaselineTotal float64

	FixedCostsPerPerson    float64
	VariableCostsPerPerson float64
	CostPerPerson          float64
	DailyCostPerPerson     float64
	CostByGroupSize        []GroupSizeCost
	Profit                 float64

	ExtrasIncluded bool
	Categories     []CategoryCost
	Discounts      []DiscountBreakdown
	Gaps           []ConfigurationGap
}

// CategoryCost records a category's marked-up cost and the reconstructed pre-markup cost.
type CategoryCost struct {
	Category string
	Cost     float64
	Markup   float64
	BaseCost float64
	InTotal  bool
}

// GroupSizeCost is one point of the cost-per-person curve.
type GroupSizeCost struct {
	Pax           int
	CostPerPerson float64
}

// DiscountBreakdown lists an individual discount applied to the running cost.
type DiscountBreakdown struct {
	Type        string
	Code        string
	Description string
	Amount      float64
}

// ConfigurationGap reports an unknown identifier that was resolved through a documented default.
type ConfigurationGap struct {
	Kind        string
	RequestedID string
	FallbackID  string
}
