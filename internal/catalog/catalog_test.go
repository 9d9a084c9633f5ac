package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourquote/engine/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "USD", cat.Rates.Base)
	assert.InDelta(t, 0.92, cat.Rates.Rates["EUR"], 1e-9)
	require.Len(t, cat.Vehicles, 3)
	assert.Equal(t, "minibus", cat.Vehicles[0].ID, "vehicle order is preserved so the first entry is the fallback")
	assert.Contains(t, cat.RoomTypes, domain.DefaultRoomTypeID)
	assert.Contains(t, cat.MealBases, domain.DefaultMealBasisID)

	single := cat.RoomTypes["single"]
	require.Len(t, single.Seasonal, 1)
	assert.Equal(t, "12-15", single.Seasonal[0].StartDate)
	assert.Equal(t, "01-15", single.Seasonal[0].EndDate)

	fullBoard := cat.MealBases["full_board"]
	require.Len(t, fullBoard.Seasonal, 1)
	require.NotNil(t, fullBoard.Seasonal[0].Priority)
	assert.Equal(t, 1, *fullBoard.Seasonal[0].Priority)

	assert.Nil(t, cat.OptionalItems["village_visit"].Seasonal)
	require.NotNil(t, cat.OptionalItems["balloon"].MaxQuantity)

	group := cat.PromoCodes["GROUP10"]
	assert.Equal(t, domain.PromoTypePercentage, group.Type)
	require.NotNil(t, group.MinimumSpend)
	assert.Equal(t, 2000.0, *group.MinimumSpend)
	assert.Nil(t, cat.PromoCodes["EARLY50"].UsageLimit)
}

func TestParseNormalizesCodes(t *testing.T) {
	cat, err := Parse([]byte(`
base_currency: eur
rates:
  usd: 1.09
promo_codes:
  - code: " spring20 "
    type: percentage
    value: 20
`))
	require.NoError(t, err)
	assert.Equal(t, "EUR", cat.Rates.Base)
	assert.Equal(t, map[string]float64{"USD": 1.09}, cat.Rates.Rates)
	require.Contains(t, cat.PromoCodes, "SPRING20")
	assert.Equal(t, "SPRING20", cat.PromoCodes["SPRING20"].Code)
}

func TestParseRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"zero fuel consumption":  "vehicles:\n  - id: van\n    daily_rate: 100\n    fuel_consumption: 0\n",
		"reserved vehicle id":    "vehicles:\n  - id: custom\n    daily_rate: 100\n    fuel_consumption: 5\n",
		"duplicate vehicle":      "vehicles:\n  - id: van\n    fuel_consumption: 5\n  - id: van\n    fuel_consumption: 5\n",
		"negative multiplier":    "room_types:\n  - id: single\n    multiplier: -1\n",
		"unknown promo type":     "promo_codes:\n  - code: BOGO\n    type: buyOneGetOne\n    value: 1\n",
		"duplicate promo":        "promo_codes:\n  - code: abc\n    type: percentage\n  - code: ABC\n    type: percentage\n",
		"non-positive rate":      "rates:\n  EUR: 0\n",
		"bad season window":      "room_types:\n  - id: single\n    multiplier: 1.5\n    seasonal:\n      - name: festive\n        multiplier: 1.2\n        start: \"12/15\"\n        end: \"01-15\"\n",
		"bad season month":       "meal_bases:\n  - id: full_board\n    cost_multiplier: 1\n    seasonal:\n      - name: migration\n        multiplier: 1.1\n        start: \"13-01\"\n        end: \"09-30\"\n",
		"zero season multiplier": "optional_items:\n  - id: balloon\n    cost: 450\n    seasonal:\n      - name: peak\n        multiplier: 0\n        start: \"07-01\"\n        end: \"09-30\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCatalog), "expected ErrInvalidCatalog, got %v", err)
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("vehicles:\n  - id: van\n    dailyrate: 100\n"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidCatalog))
}

func TestLoad(t *testing.T) {
	cat, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Vehicles)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_currency: GBP\nvehicles:\n  - id: van\n    daily_rate: 90\n    fuel_consumption: 9\n"), 0o600))
	cat, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "GBP", cat.Rates.Base)
	require.Len(t, cat.Vehicles, 1)
	assert.Equal(t, 90.0, cat.Vehicles[0].DailyRate)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
