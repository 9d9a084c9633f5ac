package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/tourquote/engine/internal/catalog"
	"github.com/tourquote/engine/internal/domain"
	"github.com/tourquote/engine/internal/handlers"
	"github.com/tourquote/engine/internal/platform/config"
	"github.com/tourquote/engine/internal/platform/observability"
	"github.com/tourquote/engine/internal/services"
)

const instrumentationName = "github.com/tourquote/engine/cmd/quoteapi"

func main() {
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("quoteapi")

	cfg, err := config.Load()
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	cat, err := catalog.Load(cfg.Quote.CatalogFile)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.String("path", cfg.Quote.CatalogFile), zap.Error(err))
	}
	rates := rateTable(cfg.Quote, cat.Rates)
	cat.Rates = rates
	logger.Info("catalog loaded",
		zap.Int("vehicles", len(cat.Vehicles)),
		zap.Int("roomTypes", len(cat.RoomTypes)),
		zap.Int("mealBases", len(cat.MealBases)),
		zap.Int("optionalItems", len(cat.OptionalItems)),
		zap.Int("promoCodes", len(cat.PromoCodes)),
		zap.String("baseCurrency", rates.Base),
	)

	discounts := groupDiscountPolicy(cfg.Quote.GroupDiscounts)
	promotionEngine := services.NewPromotionEngine(services.PromotionEngineDeps{})
	quoteEngine, err := services.NewQuoteEngine(services.QuoteEngineDeps{
		Promotion:     promotionEngine,
		GroupDiscount: &discounts,
		DefaultRates:  &rates,
		Limits:        services.TourLimits{MaxPax: cfg.Quote.MaxPax, MaxDuration: cfg.Quote.MaxDurationDays},
		Logger:        observability.EventLogger(logger.Named("engine")),
		Meter:         otel.Meter(instrumentationName),
		Tracer:        otel.Tracer(instrumentationName),
	})
	if err != nil {
		logger.Fatal("failed to initialise quote engine", zap.Error(err))
	}

	quoteHandlers := handlers.NewQuoteHandlers(quoteEngine, cat,
		handlers.WithQuoteRateLimit(cfg.RateLimits.QuotesPerMinute, nil),
		handlers.WithPromotionsEnabled(cfg.Features.EnablePromotions),
		handlers.WithIncludeExtrasDefault(cfg.Features.IncludeExtras),
		handlers.WithQuoteMaxBodySize(cfg.Server.MaxRequestBytes),
	)
	promotionHandlers := handlers.NewPromotionHandlers(promotionEngine, cat.PromoCodes,
		handlers.WithPromotionChecksEnabled(cfg.Features.EnablePromotions),
		handlers.WithPromotionRateLimit(cfg.RateLimits.QuotesPerMinute, nil),
	)
	catalogHandlers := handlers.NewCatalogHandlers(cat)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthStartedAt(startedAt),
		handlers.WithHealthVersion(buildVersion()),
		handlers.WithReadinessCheck("catalog", func(context.Context) error {
			if len(cat.RoomTypes) == 0 && len(cat.MealBases) == 0 && len(cat.Vehicles) == 0 {
				return errors.New("catalog is empty")
			}
			return nil
		}),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithQuoteRoutes(quoteHandlers.Routes),
		handlers.WithPromotionRoutes(promotionHandlers.Routes),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("quote api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// rateTable prefers configured rates, which are relative to the configured default currency,
// over the catalog's own table.
func rateTable(cfg config.QuoteConfig, catalogRates domain.CurrencyRateTable) domain.CurrencyRateTable {
	if len(cfg.Rates) == 0 {
		return catalogRates
	}
	rates := make(map[string]float64, len(cfg.Rates))
	for code, rate := range cfg.Rates {
		rates[code] = rate
	}
	return domain.CurrencyRateTable{Base: cfg.DefaultCurrency, Rates: rates}
}

func groupDiscountPolicy(tiers map[int]float64) services.GroupDiscountPolicy {
	if len(tiers) == 0 {
		return services.DefaultGroupDiscountPolicy()
	}
	out := make([]services.GroupDiscountTier, 0, len(tiers))
	for minPax, percent := range tiers {
		out = append(out, services.GroupDiscountTier{MinPax: minPax, Percent: percent})
	}
	return services.NewGroupDiscountPolicy(out)
}

func buildVersion() string {
	version := strings.TrimSpace(os.Getenv("QUOTE_BUILD_VERSION"))
	if version == "" {
		return "dev"
	}
	return version
}
