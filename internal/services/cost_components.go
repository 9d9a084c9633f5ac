package services

import (
	"math"
	"strings"

	"github.com/tourquote/engine/internal/domain"
)

// Configuration gap kinds reported when a lookup falls back to its default.
const (
	GapVehicle   = "vehicle"
	GapRoomType  = "room_type"
	GapMealBasis = "meal_basis"
)

const (
	defaultRoomMultiplier      = 1.0
	defaultMealBasisMultiplier = 0.0
)

// VehicleCost returns dailyRate * duration with the vehicle markup applied.
func VehicleCost(profile domain.VehicleProfile, duration int) (float64, error) {
	if err := checkAmount("vehicle.dailyRate", profile.DailyRate); err != nil {
		return 0, err
	}
	if err := checkAmount("vehicle.markup", profile.Markup); err != nil {
		return 0, err
	}
	return applyMarkup(profile.DailyRate*float64(duration), profile.Markup), nil
}

// FuelCost returns the fuel needed for totalDistance priced at fuelPrice.
func FuelCost(profile domain.VehicleProfile, totalDistance, fuelPrice float64) (float64, error) {
	if err := checkAmount("tour.totalDistance", totalDistance); err != nil {
		return 0, err
	}
	if err := checkAmount("tour.fuelPrice", fuelPrice); err != nil {
		return 0, err
	}
	if err := checkAmount("vehicle.fuelConsumption", profile.FuelConsumption); err != nil {
		return 0, err
	}
	if profile.FuelConsumption == 0 {
		return 0, newValidationError("vehicle.fuelConsumption", "must be greater than zero")
	}
	return (totalDistance / profile.FuelConsumption) * fuelPrice, nil
}

// AccommodationCost prices pax people for duration nights. avgCost must already carry
// the seasonal multiplier of the room type and meal basis.
func AccommodationCost(avgCost float64, roomType domain.RoomType, mealBasis domain.MealBasis, markup float64, duration, pax int) (float64, error) {
	if err := checkAmount("accommodation.averageCost", avgCost); err != nil {
		return 0, err
	}
	if err := checkAmount("accommodation.markup", markup); err != nil {
		return 0, err
	}
	if err := checkAmount("accommodation.roomMultiplier", roomType.Multiplier); err != nil {
		return 0, err
	}
	if err := checkAmount("accommodation.mealMultiplier", mealBasis.CostMultiplier); err != nil {
		return 0, err
	}
	base := avgCost * roomType.Multiplier
	withMeals := base * (1 + mealBasis.CostMultiplier)
	total := withMeals * float64(duration) * float64(pax)
	return applyMarkup(total, markup), nil
}

// CrewCost sums the daily, accommodation and meal rates of every member over the whole tour.
func CrewCost(members []domain.CrewMember, duration int) (float64, error) {
	var total float64
	for _, member := range members {
		for _, value := range []float64{member.DailyRate, member.AccommodationRate, member.MealAllowance} {
			if err := checkAmount("crew."+member.Role, value); err != nil {
				return 0, err
			}
		}
		total += (member.DailyRate + member.AccommodationRate + member.MealAllowance) * float64(duration)
	}
	return total, nil
}

// ActivityCost prices includedQty activities for pax people. avgCost must already be seasonally adjusted.
func ActivityCost(avgCost float64, includedQty, pax int, markup float64) (float64, error) {
	return perPersonQuantityCost("activity", avgCost, includedQty, pax, markup)
}

// MealCost prices includedQty meals for pax people.
func MealCost(avgCost float64, includedQty, pax int, markup float64) (float64, error) {
	return perPersonQuantityCost("meal", avgCost, includedQty, pax, markup)
}

func perPersonQuantityCost(category string, avgCost float64, includedQty, pax int, markup float64) (float64, error) {
	if err := checkAmount(category+".averageCost", avgCost); err != nil {
		return 0, err
	}
	if err := checkAmount(category+".markup", markup); err != nil {
		return 0, err
	}
	if includedQty < 0 {
		return 0, newValidationError(category+".includedQuantity", "cannot be negative")
	}
	return applyMarkup(avgCost*float64(includedQty)*float64(pax), markup), nil
}

// ParkFeesCost returns the sum of the daily fees for pax people.
func ParkFeesCost(feesPerDay domain.ParkFeeSchedule, pax int) (float64, error) {
	var sum float64
	for _, fee := range feesPerDay {
		if err := checkAmount("parkFees", fee); err != nil {
			return 0, err
		}
		sum += fee
	}
	return sum * float64(pax), nil
}

// PrePostTourCost prices the extra nights with markup.
func PrePostTourCost(costPerNight float64, nights int, markup float64) (float64, error) {
	if err := checkAmount("prePostTour.costPerNight", costPerNight); err != nil {
		return 0, err
	}
	if err := checkAmount("prePostTour.markup", markup); err != nil {
		return 0, err
	}
	if nights < 0 {
		return 0, newValidationError("prePostTour.nights", "cannot be negative")
	}
	return applyMarkup(costPerNight*float64(nights), markup), nil
}

// ResolveVehicle returns the selected vehicle. Unknown IDs fall back to the first catalog entry
// and report ok=false; an empty catalog yields a zero profile.
func ResolveVehicle(vehicles []domain.VehicleProfile, selection domain.VehicleSelection) (domain.VehicleProfile, bool) {
	id := strings.TrimSpace(selection.ID)
	if id == domain.CustomVehicleID && selection.Custom != nil {
		return domain.VehicleProfile{
			ID:              domain.CustomVehicleID,
			Name:            selection.Custom.Name,
			DailyRate:       selection.Custom.DailyRate,
			FuelConsumption: selection.Custom.FuelConsumption,
			Markup:          selection.Custom.Markup,
		}, true
	}
	for _, vehicle := range vehicles {
		if vehicle.ID == id {
			return vehicle, true
		}
	}
	if len(vehicles) == 0 {
		return domain.VehicleProfile{}, false
	}
	return vehicles[0], false
}

// ResolveRoomType looks up a room type, defaulting to a plain double room (multiplier 1.0).
func ResolveRoomType(roomTypes map[string]domain.RoomType, id string) (domain.RoomType, bool) {
	if room, ok := roomTypes[strings.TrimSpace(id)]; ok {
		return room, true
	}
	return domain.RoomType{ID: domain.DefaultRoomTypeID, Name: "Double", Multiplier: defaultRoomMultiplier}, false
}

// ResolveMealBasis looks up a meal basis, defaulting to room only (multiplier 0.0).
func ResolveMealBasis(mealBases map[string]domain.MealBasis, id string) (domain.MealBasis, bool) {
	if basis, ok := mealBases[strings.TrimSpace(id)]; ok {
		return basis, true
	}
	return domain.MealBasis{ID: domain.DefaultMealBasisID, Name: "Room only", CostMultiplier: defaultMealBasisMultiplier}, false
}

// BaseCost reverses a markup, reconstructing the pre-markup cost.
func BaseCost(markedUp, markup float64) float64 {
	return markedUp / (1 + markup/100)
}

func applyMarkup(amount, markup float64) float64 {
	return amount * (1 + markup/100)
}

func checkAmount(field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return newValidationError(field, "must be a finite number")
	}
	if value < 0 {
		return newValidationError(field, "cannot be negative")
	}
	return nil
}
