package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourquote/engine/internal/domain"
	"github.com/tourquote/engine/internal/services"
)

func postPromoCheck(t *testing.T, h *PromotionHandlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.Routes(r)
	req := httptest.NewRequest(http.MethodPost, "/promotions:check", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func newTestPromotionHandlers(opts ...PromotionHandlerOption) *PromotionHandlers {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	engine := services.NewPromotionEngine(services.PromotionEngineDeps{Clock: func() time.Time { return now }})
	minSpend := 2000.0
	table := map[string]domain.PromoCode{
		"EARLY50": {Code: "EARLY50", Type: domain.PromoTypeFixedAmount, Value: 50, StartDate: "2024-01-01", EndDate: "2030-12-31"},
		"GROUP10": {Code: "GROUP10", Type: domain.PromoTypePercentage, Value: 10, StartDate: "2024-01-01", EndDate: "2030-12-31", MinimumSpend: &minSpend},
		"OLD":     {Code: "OLD", Type: domain.PromoTypePercentage, Value: 5, StartDate: "2020-01-01", EndDate: "2020-12-31"},
		"AB":      {Code: "AB", Type: domain.PromoTypePercentage, Value: 5, StartDate: "2024-01-01", EndDate: "2030-12-31"},
	}
	return NewPromotionHandlers(engine, table, opts...)
}

func TestPromotionHandlers_Check(t *testing.T) {
	tests := []struct {
		name string
		body string
		want promoCheckResponse
	}{
		{
			name: "valid fixed amount",
			body: `{"code": "early50", "cost": 900}`,
			want: promoCheckResponse{Code: "EARLY50", Valid: true, Type: "fixedAmount", Value: 50},
		},
		{
			name: "minimum spend not met",
			body: `{"code": "GROUP10", "cost": 1500}`,
			want: promoCheckResponse{Code: "GROUP10", Valid: false, Reason: services.PromoReasonMinimumSpend, Type: "percentage", Value: 10},
		},
		{
			name: "expired",
			body: `{"code": "OLD", "cost": 100}`,
			want: promoCheckResponse{Code: "OLD", Valid: false, Reason: services.PromoReasonExpired, Type: "percentage", Value: 5},
		},
		{
			name: "unknown",
			body: `{"code": "NOPE", "cost": 100}`,
			want: promoCheckResponse{Code: "NOPE", Valid: false, Reason: services.PromoReasonNotFound},
		},
		{
			name: "too short",
			body: `{"code": "AB", "cost": 100}`,
			want: promoCheckResponse{Code: "AB", Valid: false, Reason: services.PromoReasonInvalidFormat, Type: "percentage", Value: 5},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := postPromoCheck(t, newTestPromotionHandlers(), tc.body)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			var got promoCheckResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPromotionHandlers_Disabled(t *testing.T) {
	rr := postPromoCheck(t, newTestPromotionHandlers(WithPromotionChecksEnabled(false)), `{"code": "early50", "cost": 900}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var got promoCheckResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, promoCheckResponse{Code: "EARLY50", Valid: false, Reason: promoReasonDisabled}, got)
}

func TestPromotionHandlers_InvalidRequests(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field any
	}{
		{name: "empty body", body: ""},
		{name: "unknown field", body: `{"code": "EARLY50", "pax": 3}`},
		{name: "missing code", body: `{"cost": 100}`, field: "code"},
		{name: "negative cost", body: `{"code": "EARLY50", "cost": -1}`, field: "cost"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := postPromoCheck(t, newTestPromotionHandlers(), tc.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, "invalid_request", body["error"])
			if tc.field != nil {
				assert.Equal(t, tc.field, body["field"])
			}
		})
	}
}

func TestPromotionHandlers_RateLimited(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h := newTestPromotionHandlers(WithPromotionRateLimit(2, func() time.Time { return now }))

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, postPromoCheck(t, h, `{"code": "EARLY50", "cost": 10}`).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, postPromoCheck(t, h, `{"code": "EARLY50", "cost": 10}`).Code)
}

func TestPromotionHandlers_NilChecker(t *testing.T) {
	h := NewPromotionHandlers(nil, nil)

	rr := postPromoCheck(t, h, `{"code": "EARLY50", "cost": 10}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
