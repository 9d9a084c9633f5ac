package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourquote/engine/internal/catalog"
	"github.com/tourquote/engine/internal/domain"
)

func TestCatalogHandlers_GetCatalog(t *testing.T) {
	cat := testCatalog()
	cat.RoomTypes = map[string]domain.RoomType{
		"single": {ID: "single", Name: "Single", Multiplier: 1.5, Seasonal: []domain.SeasonalAdjustment{{Name: "festive", Multiplier: 1.2, StartDate: "12-15", EndDate: "01-15"}}},
		"double": {ID: "double", Name: "Double", Multiplier: 1},
	}
	cat.MealBases = map[string]domain.MealBasis{
		"half_board": {ID: "half_board", Name: "Half board", CostMultiplier: 0.3},
	}

	r := chi.NewRouter()
	NewCatalogHandlers(cat).Routes(r)
	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Cache-Control"))

	var resp catalogResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Vehicles, 1)
	assert.Equal(t, "minibus", resp.Vehicles[0].ID)
	require.Len(t, resp.RoomTypes, 2)
	assert.Equal(t, "double", resp.RoomTypes[0].ID)
	assert.Equal(t, "single", resp.RoomTypes[1].ID)
	assert.Equal(t, 1, resp.RoomTypes[1].Seasonal)
	require.Len(t, resp.MealBases, 1)
	assert.InDelta(t, 0.3, resp.MealBases[0].Multiplier, 1e-9)
	require.Len(t, resp.OptionalItems, 1)
	require.NotNil(t, resp.OptionalItems[0].MaxQuantity)
	assert.Equal(t, 2, *resp.OptionalItems[0].MaxQuantity)
	assert.Equal(t, "USD", resp.Currencies.Base)
	assert.InDelta(t, 0.9, resp.Currencies.Rates["EUR"], 1e-9)

	assert.NotContains(t, rr.Body.String(), "EARLY50")
}

func TestCatalogHandlers_DefaultCatalog(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	resp := buildCatalogResponse(cat)
	assert.Len(t, resp.Vehicles, len(cat.Vehicles))
	assert.Len(t, resp.RoomTypes, len(cat.RoomTypes))
	assert.Len(t, resp.MealBases, len(cat.MealBases))
	assert.Len(t, resp.OptionalItems, len(cat.OptionalItems))
	assert.Len(t, resp.Currencies.Rates, len(cat.Rates.Rates))
}
