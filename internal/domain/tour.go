package domain

import "time"

// CustomVehicleID selects the caller-supplied vehicle instead of a catalog entry.
const CustomVehicleID = "custom"

// Default identifiers used when a room type or meal basis selection is unknown.
const (
	DefaultRoomTypeID  = "double"
	DefaultMealBasisID = "room_only"
)

// TourConfiguration describes the shape of the tour being quoted.
type TourConfiguration struct {
	Duration        int
	MinPax          int
	MaxPax          int
	CurrentPax      int
	TotalDistance   float64
	FuelPrice       float64
	TravelStartDate time.Time
}

// VehicleProfile is a catalog vehicle with its daily rate and fuel consumption (km per unit of fuel).
type VehicleProfile struct {
	ID              string
	Name            string
	DailyRate       float64
	FuelConsumption float64
	Markup          float64
}

// VehicleSelection picks a catalog vehicle by ID, or a custom one when ID is CustomVehicleID.
type VehicleSelection struct {
	ID     string
	Custom *CustomVehicle
}

// CustomVehicle carries caller-supplied vehicle values.
type CustomVehicle struct {
	Name            string
	DailyRate       float64
	FuelConsumption float64
	Markup          float64
}

// CrewMember accrues its rates for every tour day.
type CrewMember struct {
	Role              string
	DailyRate         float64
	AccommodationRate float64
	MealAllowance     float64
}

// RoomType multiplies the average accommodation cost.
type RoomType struct {
	ID         string
	Name       string
	Multiplier float64
	Seasonal   []SeasonalAdjustment
}

// MealBasis adds CostMultiplier on top of the room cost (0.5 means +50%).
type MealBasis struct {
	ID             string
	Name           string
	CostMultiplier float64
	Seasonal       []SeasonalAdjustment
}

// AccommodationProfile is priced per person per night.
type AccommodationProfile struct {
	AverageCost float64
	RoomType    string
	MealBasis   string
	Markup      float64
}

// ActivityProfile is priced per person per included activity.
type ActivityProfile struct {
	AverageCost      float64
	IncludedQuantity int
	Markup           float64
	Seasonal         []SeasonalAdjustment
}

// MealProfile is priced per person per included meal.
type MealProfile struct {
	AverageCost      float64
	IncludedQuantity int
	Markup           float64
}

// ParkFeeSchedule lists per-person fees by tour day. Missing days cost nothing.
type ParkFeeSchedule []float64

// PrePostTourProfile covers extra nights before or after the tour.
type PrePostTourProfile struct {
	Nights       int
	CostPerNight float64
	Markup       float64
}

// OptionalItem is an add-on the caller may select. MaxQuantity is advisory only.
type OptionalItem struct {
	ID          string
	Name        string
	Category    string
	Cost        float64
	Seasonal    []SeasonalAdjustment
	MaxQuantity *int
}

// OptionalSelection is a caller's choice of an optional item.
type OptionalSelection struct {
	ID       string
	Quantity int
}

// SeasonalAdjustment applies Multiplier between StartDate and EndDate ("MM-DD", inclusive, year-independent).
type SeasonalAdjustment struct {
	Name       string
	Multiplier float64
	StartDate  string
	EndDate    string
	Priority   *int
}

// PriorityValue returns the rule priority, treating an unset priority as zero.
func (a SeasonalAdjustment) PriorityValue() int {
	if a.Priority == nil {
		return 0
	}
	return *a.Priority
}

// PromoType distinguishes percentage and fixed amount promo codes.
type PromoType string

const (
	PromoTypePercentage  PromoType = "percentage"
	PromoTypeFixedAmount PromoType = "fixedAmount"
)

// PromoCode is an entry of the promo table. StartDate and EndDate are full dates.
type PromoCode struct {
	Code         string
	Type         PromoType
	Value        float64
	StartDate    string
	EndDate      string
	MinimumSpend *float64
	UsageLimit   *int
	UsedCount    int
}

// CurrencyRateTable maps currency codes to multipliers relative to Base.
type CurrencyRateTable struct {
	Base  string
	Rates map[string]float64
}

// Catalog bundles the read-only lookup tables consumed by the engine.
type Catalog struct {
	Vehicles      []VehicleProfile
	RoomTypes     map[string]RoomType
	MealBases     map[string]MealBasis
	OptionalItems map[string]OptionalItem
	PromoCodes    map[string]PromoCode
	Rates         CurrencyRateTable
}
