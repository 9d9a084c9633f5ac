// Package catalog loads the read-only vehicle, accommodation, optional item, promo code and
// currency tables consumed by the quote engine.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tourquote/engine/internal/domain"
	"github.com/tourquote/engine/internal/platform/textutil"
	"github.com/tourquote/engine/internal/services"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// ErrInvalidCatalog is wrapped by every validation failure reported by Parse.
var ErrInvalidCatalog = errors.New("catalog: invalid catalog")

type catalogFile struct {
	BaseCurrency  string             `yaml:"base_currency"`
	Rates         map[string]float64 `yaml:"rates"`
	Vehicles      []vehicleEntry     `yaml:"vehicles"`
	RoomTypes     []roomTypeEntry    `yaml:"room_types"`
	MealBases     []mealBasisEntry   `yaml:"meal_bases"`
	OptionalItems []optionalEntry    `yaml:"optional_items"`
	PromoCodes    []promoEntry       `yaml:"promo_codes"`
}

type vehicleEntry struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	DailyRate       float64 `yaml:"daily_rate"`
	FuelConsumption float64 `yaml:"fuel_consumption"`
	Markup          float64 `yaml:"markup"`
}

type seasonalEntry struct {
	Name       string  `yaml:"name"`
	Multiplier float64 `yaml:"multiplier"`
	Start      string  `yaml:"start"`
	End        string  `yaml:"end"`
	Priority   *int    `yaml:"priority"`
}

type roomTypeEntry struct {
	ID         string          `yaml:"id"`
	Name       string          `yaml:"name"`
	Multiplier float64         `yaml:"multiplier"`
	Seasonal   []seasonalEntry `yaml:"seasonal"`
}

type mealBasisEntry struct {
	ID             string          `yaml:"id"`
	Name           string          `yaml:"name"`
	CostMultiplier float64         `yaml:"cost_multiplier"`
	Seasonal       []seasonalEntry `yaml:"seasonal"`
}

type optionalEntry struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Category    string          `yaml:"category"`
	Cost        float64         `yaml:"cost"`
	MaxQuantity *int            `yaml:"max_quantity"`
	Seasonal    []seasonalEntry `yaml:"seasonal"`
}

type promoEntry struct {
	Code         string   `yaml:"code"`
	Type         string   `yaml:"type"`
	Value        float64  `yaml:"value"`
	StartDate    string   `yaml:"start_date"`
	EndDate      string   `yaml:"end_date"`
	MinimumSpend *float64 `yaml:"minimum_spend"`
	UsageLimit   *int     `yaml:"usage_limit"`
	UsedCount    int      `yaml:"used_count"`
}

// Default returns the embedded reference catalog.
func Default() (domain.Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or returns the embedded catalog when path is empty.
func Load(path string) (domain.Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes a YAML catalog. Unknown fields are rejected so typos surface at startup.
func Parse(data []byte) (domain.Catalog, error) {
	var file catalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return domain.Catalog{}, fmt.Errorf("catalog: decode yaml: %w", err)
	}

	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	checkSeasonal := func(section string, i int, rules []domain.SeasonalAdjustment) {
		for j, rule := range rules {
			if err := services.ValidateSeasonalRule(rule); err != nil {
				problems = append(problems, fmt.Sprintf("%s[%d].seasonal[%d]: %v", section, i, j, err))
			}
		}
	}

	cat := domain.Catalog{
		RoomTypes:     make(map[string]domain.RoomType, len(file.RoomTypes)),
		MealBases:     make(map[string]domain.MealBasis, len(file.MealBases)),
		OptionalItems: make(map[string]domain.OptionalItem, len(file.OptionalItems)),
		PromoCodes:    make(map[string]domain.PromoCode, len(file.PromoCodes)),
		Rates: domain.CurrencyRateTable{
			Base:  textutil.NormalizeCode(file.BaseCurrency),
			Rates: textutil.NormalizeCodeMap(file.Rates),
		},
	}
	for code, rate := range cat.Rates.Rates {
		check(validAmount(rate) && rate > 0, "rates.%s must be positive", code)
	}

	seenVehicles := make(map[string]struct{}, len(file.Vehicles))
	for i, entry := range file.Vehicles {
		id := strings.TrimSpace(entry.ID)
		check(id != "" && id != domain.CustomVehicleID, "vehicles[%d].id must be set and not %q", i, domain.CustomVehicleID)
		_, dup := seenVehicles[id]
		check(!dup, "vehicles[%d].id %q is duplicated", i, id)
		seenVehicles[id] = struct{}{}
		check(validAmount(entry.DailyRate) && validAmount(entry.Markup), "vehicles[%d] rates must be non-negative", i)
		check(validAmount(entry.FuelConsumption) && entry.FuelConsumption > 0, "vehicles[%d].fuel_consumption must be positive", i)
		cat.Vehicles = append(cat.Vehicles, domain.VehicleProfile{
			ID:              id,
			Name:            strings.TrimSpace(entry.Name),
			DailyRate:       entry.DailyRate,
			FuelConsumption: entry.FuelConsumption,
			Markup:          entry.Markup,
		})
	}

	for i, entry := range file.RoomTypes {
		id := strings.TrimSpace(entry.ID)
		_, dup := cat.RoomTypes[id]
		check(id != "" && !dup, "room_types[%d].id must be set and unique", i)
		check(validAmount(entry.Multiplier), "room_types[%d].multiplier must be non-negative", i)
		room := domain.RoomType{
			ID:         id,
			Name:       strings.TrimSpace(entry.Name),
			Multiplier: entry.Multiplier,
			Seasonal:   convertSeasonal(entry.Seasonal),
		}
		checkSeasonal("room_types", i, room.Seasonal)
		cat.RoomTypes[id] = room
	}

	for i, entry := range file.MealBases {
		id := strings.TrimSpace(entry.ID)
		_, dup := cat.MealBases[id]
		check(id != "" && !dup, "meal_bases[%d].id must be set and unique", i)
		check(validAmount(entry.CostMultiplier), "meal_bases[%d].cost_multiplier must be non-negative", i)
		basis := domain.MealBasis{
			ID:             id,
			Name:           strings.TrimSpace(entry.Name),
			CostMultiplier: entry.CostMultiplier,
			Seasonal:       convertSeasonal(entry.Seasonal),
		}
		checkSeasonal("meal_bases", i, basis.Seasonal)
		cat.MealBases[id] = basis
	}

	for i, entry := range file.OptionalItems {
		id := strings.TrimSpace(entry.ID)
		_, dup := cat.OptionalItems[id]
		check(id != "" && !dup, "optional_items[%d].id must be set and unique", i)
		check(validAmount(entry.Cost), "optional_items[%d].cost must be non-negative", i)
		check(entry.MaxQuantity == nil || *entry.MaxQuantity >= 0, "optional_items[%d].max_quantity must be non-negative", i)
		item := domain.OptionalItem{
			ID:          id,
			Name:        strings.TrimSpace(entry.Name),
			Category:    strings.TrimSpace(entry.Category),
			Cost:        entry.Cost,
			Seasonal:    convertSeasonal(entry.Seasonal),
			MaxQuantity: entry.MaxQuantity,
		}
		checkSeasonal("optional_items", i, item.Seasonal)
		cat.OptionalItems[id] = item
	}

	for i, entry := range file.PromoCodes {
		code := textutil.NormalizeCode(entry.Code)
		_, dup := cat.PromoCodes[code]
		check(code != "" && !dup, "promo_codes[%d].code must be set and unique", i)
		promoType := domain.PromoType(strings.TrimSpace(entry.Type))
		check(promoType == domain.PromoTypePercentage || promoType == domain.PromoTypeFixedAmount,
			"promo_codes[%d].type %q is not %s or %s", i, entry.Type, domain.PromoTypePercentage, domain.PromoTypeFixedAmount)
		check(validAmount(entry.Value), "promo_codes[%d].value must be non-negative", i)
		cat.PromoCodes[code] = domain.PromoCode{
			Code:         code,
			Type:         promoType,
			Value:        entry.Value,
			StartDate:    strings.TrimSpace(entry.StartDate),
			EndDate:      strings.TrimSpace(entry.EndDate),
			MinimumSpend: entry.MinimumSpend,
			UsageLimit:   entry.UsageLimit,
			UsedCount:    entry.UsedCount,
		}
	}

	if len(problems) > 0 {
		return domain.Catalog{}, fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(problems, "; "))
	}
	return cat, nil
}

// convertSeasonal keeps a nil slice nil so optional items without rules fall back to request overrides.
func convertSeasonal(entries []seasonalEntry) []domain.SeasonalAdjustment {
	if entries == nil {
		return nil
	}
	out := make([]domain.SeasonalAdjustment, 0, len(entries))
	for _, entry := range entries {
		out = append(out, domain.SeasonalAdjustment{
			Name:       strings.TrimSpace(entry.Name),
			Multiplier: entry.Multiplier,
			StartDate:  strings.TrimSpace(entry.Start),
			EndDate:    strings.TrimSpace(entry.End),
			Priority:   entry.Priority,
		})
	}
	return out
}

func validAmount(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0) && value >= 0
}
