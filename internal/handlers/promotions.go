package handlers

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tourquote/engine/internal/domain"
	"github.com/tourquote/engine/internal/platform/httpx"
	"github.com/tourquote/engine/internal/services"
)

const promoReasonDisabled = "disabled"

// PromotionHandlers answers promo code checks without pricing a full quote.
type PromotionHandlers struct {
	checker    services.PromoCodeChecker
	promoCodes map[string]domain.PromoCode
	enabled    bool
	limiter    rateLimiter
	maxBody    int64
}

// PromotionHandlerOption customises PromotionHandlers.
type PromotionHandlerOption func(*PromotionHandlers)

// NewPromotionHandlers constructs promo check handlers over the provided promo table.
func NewPromotionHandlers(checker services.PromoCodeChecker, promoCodes map[string]domain.PromoCode, opts ...PromotionHandlerOption) *PromotionHandlers {
	h := &PromotionHandlers{
		checker:    checker,
		promoCodes: promoCodes,
		enabled:    true,
		maxBody:    defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithPromotionChecksEnabled toggles promo checks. Disabled checks always report invalid.
func WithPromotionChecksEnabled(enabled bool) PromotionHandlerOption {
	return func(h *PromotionHandlers) {
		h.enabled = enabled
	}
}

// WithPromotionRateLimit caps promo checks per client per minute. Zero disables limiting.
func WithPromotionRateLimit(perMinute int, clock func() time.Time) PromotionHandlerOption {
	return func(h *PromotionHandlers) {
		h.limiter = newKeyedLimiter(perMinute, time.Minute, clock)
	}
}

// Routes registers promotion endpoints under the provided router.
func (h *PromotionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/promotions:check", h.checkPromoCode)
}

type promoCheckRequest struct {
	Code string  `json:"code"`
	Cost float64 `json:"cost"`
}

type promoCheckResponse struct {
	Code   string  `json:"code"`
	Valid  bool    `json:"valid"`
	Reason string  `json:"reason,omitempty"`
	Type   string  `json:"type,omitempty"`
	Value  float64 `json:"value,omitempty"`
}

func (h *PromotionHandlers) checkPromoCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checker == nil {
		httpx.WriteError(ctx, w, httpx.NewError("promotions_unavailable", "promotion engine unavailable", http.StatusServiceUnavailable))
		return
	}
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many promo checks; retry later", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, h.maxBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}
	var req promoCheckRequest
	if err := decodeStrict(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "code is required", http.StatusBadRequest).
			WithDetails(map[string]any{"field": "code"}))
		return
	}
	if req.Cost < 0 || math.IsNaN(req.Cost) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "cost must be zero or positive", http.StatusBadRequest).
			WithDetails(map[string]any{"field": "cost"}))
		return
	}

	if !h.enabled {
		writeJSONResponse(w, http.StatusOK, promoCheckResponse{
			Code:   strings.ToUpper(code),
			Valid:  false,
			Reason: promoReasonDisabled,
		})
		return
	}

	check := h.checker.CheckPromoCode(code, h.promoCodes, req.Cost)
	writeJSONResponse(w, http.StatusOK, promoCheckResponse{
		Code:   check.Code,
		Valid:  check.Valid,
		Reason: check.Reason,
		Type:   string(check.Type),
		Value:  check.Value,
	})
}
