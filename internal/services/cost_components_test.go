package services

import (
	"errors"
	"math"
	"testing"

	"github.com/tourquote/engine/internal/domain"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestVehicleAndFuelCost_EndToEnd(t *testing.T) {
	vehicle := domain.VehicleProfile{ID: "coach", DailyRate: 350, FuelConsumption: 4, Markup: 15}

	vehicleCost, err := VehicleCost(vehicle, 7)
	if err != nil {
		t.Fatalf("VehicleCost error: %v", err)
	}
	if !approxEqual(vehicleCost, 2817.5) {
		t.Fatalf("expected vehicle cost 2817.5, got %v", vehicleCost)
	}

	fuelCost, err := FuelCost(vehicle, 1200, 2.5)
	if err != nil {
		t.Fatalf("FuelCost error: %v", err)
	}
	if fuelCost != 750 {
		t.Fatalf("expected fuel cost 750, got %v", fuelCost)
	}

	fixed := vehicleCost + fuelCost
	if !approxEqual(fixed, 3567.5) {
		t.Fatalf("expected fixed costs 3567.5, got %v", fixed)
	}
	if perPerson := fixed / 8; !approxEqual(perPerson, 445.9375) {
		t.Fatalf("expected 445.9375 per person, got %v", perPerson)
	}
}

func TestFuelCost_RejectsZeroConsumption(t *testing.T) {
	_, err := FuelCost(domain.VehicleProfile{DailyRate: 100}, 500, 2)
	if !errors.Is(err, ErrQuoteValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "vehicle.fuelConsumption" {
		t.Fatalf("expected fuelConsumption field, got %v", err)
	}
}

func TestAccommodationCost(t *testing.T) {
	room := domain.RoomType{ID: "single", Multiplier: 1.5}
	basis := domain.MealBasis{ID: "half_board", CostMultiplier: 0.25}

	got, err := AccommodationCost(100, room, basis, 10, 3, 2)
	if err != nil {
		t.Fatalf("AccommodationCost error: %v", err)
	}
	if !approxEqual(got, 1237.5) {
		t.Fatalf("expected 1237.5, got %v", got)
	}
}

func TestComponentCosts(t *testing.T) {
	crew := []domain.CrewMember{
		{Role: "guide", DailyRate: 100, AccommodationRate: 50, MealAllowance: 30},
		{Role: "driver", DailyRate: 80, MealAllowance: 20},
	}

	cases := []struct {
		name string
		fn   func() (float64, error)
		want float64
	}{
		{name: "crew", fn: func() (float64, error) { return CrewCost(crew, 5) }, want: 1400},
		{name: "activities", fn: func() (float64, error) { return ActivityCost(40, 3, 5, 10) }, want: 660},
		{name: "meals", fn: func() (float64, error) { return MealCost(15, 4, 2, 0) }, want: 120},
		{name: "park fees", fn: func() (float64, error) { return ParkFeesCost(domain.ParkFeeSchedule{10, 20, 30}, 4) }, want: 240},
		{name: "pre post tour", fn: func() (float64, error) { return PrePostTourCost(120, 2, 10) }, want: 264},
		{name: "no crew", fn: func() (float64, error) { return CrewCost(nil, 5) }, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.fn()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !approxEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestComponentCosts_RejectInvalidAmounts(t *testing.T) {
	cases := []struct {
		name string
		fn   func() (float64, error)
	}{
		{name: "negative daily rate", fn: func() (float64, error) { return VehicleCost(domain.VehicleProfile{DailyRate: -1}, 3) }},
		{name: "nan markup", fn: func() (float64, error) { return MealCost(10, 1, 1, math.NaN()) }},
		{name: "negative quantity", fn: func() (float64, error) { return ActivityCost(10, -1, 1, 0) }},
		{name: "negative park fee", fn: func() (float64, error) { return ParkFeesCost(domain.ParkFeeSchedule{5, -5}, 2) }},
		{name: "negative nights", fn: func() (float64, error) { return PrePostTourCost(100, -2, 0) }},
		{name: "infinite crew rate", fn: func() (float64, error) {
			return CrewCost([]domain.CrewMember{{Role: "guide", DailyRate: math.Inf(1)}}, 2)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.fn(); !errors.Is(err, ErrQuoteValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestResolveVehicle(t *testing.T) {
	vehicles := []domain.VehicleProfile{
		{ID: "van", DailyRate: 150, FuelConsumption: 9},
		{ID: "coach", DailyRate: 350, FuelConsumption: 4},
	}

	got, ok := ResolveVehicle(vehicles, domain.VehicleSelection{ID: "coach"})
	if !ok || got.ID != "coach" {
		t.Fatalf("expected coach, got %+v (ok=%v)", got, ok)
	}

	got, ok = ResolveVehicle(vehicles, domain.VehicleSelection{ID: "limo"})
	if ok || got.ID != "van" {
		t.Fatalf("expected fallback to first vehicle, got %+v (ok=%v)", got, ok)
	}

	custom := domain.VehicleSelection{
		ID:     domain.CustomVehicleID,
		Custom: &domain.CustomVehicle{Name: "Overland truck", DailyRate: 500, FuelConsumption: 3, Markup: 20},
	}
	got, ok = ResolveVehicle(vehicles, custom)
	if !ok || got.DailyRate != 500 || got.Name != "Overland truck" {
		t.Fatalf("expected custom vehicle, got %+v (ok=%v)", got, ok)
	}

	got, ok = ResolveVehicle(nil, domain.VehicleSelection{ID: "van"})
	if ok || got != (domain.VehicleProfile{}) {
		t.Fatalf("expected zero profile for empty catalog, got %+v", got)
	}
}

func TestResolveRoomTypeAndMealBasis_Defaults(t *testing.T) {
	rooms := map[string]domain.RoomType{"single": {ID: "single", Multiplier: 1.6}}
	bases := map[string]domain.MealBasis{"full_board": {ID: "full_board", CostMultiplier: 0.6}}

	if room, ok := ResolveRoomType(rooms, "single"); !ok || room.Multiplier != 1.6 {
		t.Fatalf("expected single room, got %+v", room)
	}
	room, ok := ResolveRoomType(rooms, "penthouse")
	if ok || room.ID != domain.DefaultRoomTypeID || room.Multiplier != 1.0 {
		t.Fatalf("expected double room default, got %+v (ok=%v)", room, ok)
	}

	if basis, ok := ResolveMealBasis(bases, " full_board "); !ok || basis.CostMultiplier != 0.6 {
		t.Fatalf("expected full board, got %+v", basis)
	}
	basis, ok := ResolveMealBasis(nil, "")
	if ok || basis.ID != domain.DefaultMealBasisID || basis.CostMultiplier != 0 {
		t.Fatalf("expected room only default, got %+v (ok=%v)", basis, ok)
	}
}

func TestBaseCost_ReversesMarkup(t *testing.T) {
	if got := BaseCost(2817.5, 15); !approxEqual(got, 2450) {
		t.Fatalf("expected 2450, got %v", got)
	}
	if got := BaseCost(100, 0); got != 100 {
		t.Fatalf("expected unchanged cost without markup, got %v", got)
	}
}
