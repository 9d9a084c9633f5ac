package handlers

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/tourquote/engine/internal/domain"
)

// CatalogHandlers publishes the selectable parts of the pricing catalog. Promo codes stay private.
type CatalogHandlers struct {
	response catalogResponse
}

// NewCatalogHandlers snapshots catalog into a response served on every request.
func NewCatalogHandlers(catalog domain.Catalog) *CatalogHandlers {
	return &CatalogHandlers{response: buildCatalogResponse(catalog)}
}

// Routes registers catalog endpoints under the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/catalog", h.getCatalog)
}

type catalogVehicle struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DailyRate       float64 `json:"dailyRate"`
	FuelConsumption float64 `json:"fuelConsumption"`
	Markup          float64 `json:"markup"`
}

type catalogOption struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
	Seasonal   int     `json:"seasonalRules"`
}

type catalogOptionalItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category,omitempty"`
	Cost        float64 `json:"cost"`
	MaxQuantity *int    `json:"maxQuantity,omitempty"`
}

type catalogCurrencies struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

type catalogResponse struct {
	Vehicles      []catalogVehicle      `json:"vehicles"`
	RoomTypes     []catalogOption       `json:"roomTypes"`
	MealBases     []catalogOption       `json:"mealBases"`
	OptionalItems []catalogOptionalItem `json:"optionalItems"`
	Currencies    catalogCurrencies     `json:"currencies"`
}

func (h *CatalogHandlers) getCatalog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSONResponse(w, http.StatusOK, h.response)
}

func buildCatalogResponse(catalog domain.Catalog) catalogResponse {
	resp := catalogResponse{
		Vehicles:      make([]catalogVehicle, 0, len(catalog.Vehicles)),
		RoomTypes:     make([]catalogOption, 0, len(catalog.RoomTypes)),
		MealBases:     make([]catalogOption, 0, len(catalog.MealBases)),
		OptionalItems: make([]catalogOptionalItem, 0, len(catalog.OptionalItems)),
		Currencies: catalogCurrencies{
			Base:  catalog.Rates.Base,
			Rates: make(map[string]float64, len(catalog.Rates.Rates)),
		},
	}
	for _, v := range catalog.Vehicles {
		resp.Vehicles = append(resp.Vehicles, catalogVehicle{
			ID:              v.ID,
			Name:            v.Name,
			DailyRate:       v.DailyRate,
			FuelConsumption: v.FuelConsumption,
			Markup:          v.Markup,
		})
	}
	for _, id := range sortedKeys(catalog.RoomTypes) {
		rt := catalog.RoomTypes[id]
		resp.RoomTypes = append(resp.RoomTypes, catalogOption{ID: id, Name: rt.Name, Multiplier: rt.Multiplier, Seasonal: len(rt.Seasonal)})
	}
	for _, id := range sortedKeys(catalog.MealBases) {
		mb := catalog.MealBases[id]
		resp.MealBases = append(resp.MealBases, catalogOption{ID: id, Name: mb.Name, Multiplier: mb.CostMultiplier, Seasonal: len(mb.Seasonal)})
	}
	for _, id := range sortedKeys(catalog.OptionalItems) {
		item := catalog.OptionalItems[id]
		resp.OptionalItems = append(resp.OptionalItems, catalogOptionalItem{
			ID:          id,
			Name:        item.Name,
			Category:    item.Category,
			Cost:        item.Cost,
			MaxQuantity: item.MaxQuantity,
		})
	}
	for code, rate := range catalog.Rates.Rates {
		resp.Currencies.Rates[code] = rate
	}
	return resp
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
