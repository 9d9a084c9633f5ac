package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultBaseCurrency     = "USD"
	defaultQuotesPerMinute  = 60
	defaultMaxRequestBytes  = 256 * 1024
	defaultGroupDiscountEnv = "6=5,10=10"
	defaultMaxPax           = 500
	defaultMaxDurationDays  = 365
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Quote      QuoteConfig
	RateLimits RateLimitConfig
	Features   FeatureFlags
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxRequestBytes int64
}

// QuoteConfig holds the catalog source and the rate and discount tables used when a request omits them.
type QuoteConfig struct {
	// CatalogFile points at a YAML catalog. Empty selects the embedded default catalog.
	CatalogFile     string
	DefaultCurrency string
	// Rates are multipliers relative to DefaultCurrency, keyed by ISO code.
	Rates map[string]float64
	// GroupDiscounts maps a minimum passenger count to a discount percentage.
	GroupDiscounts map[int]float64
	// MaxPax and MaxDurationDays bound the tour size a single quote may request.
	MaxPax          int
	MaxDurationDays int
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	QuotesPerMinute int
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	EnablePromotions bool
	IncludeExtras    bool
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration from defaults, .env overrides and environment variables.
// Precedence, lowest first: defaults, .env, OS environment, explicit env map.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	var invalid []string

	rates, badRates := floatMapWithDefault(lookup, "QUOTE_RATES")
	for _, key := range badRates {
		invalid = append(invalid, "Quote.Rates["+key+"]")
	}
	discounts, badDiscounts := tierMapWithDefault(lookup, "QUOTE_GROUP_DISCOUNTS", defaultGroupDiscountEnv)
	for _, key := range badDiscounts {
		invalid = append(invalid, "Quote.GroupDiscounts["+key+"]")
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "QUOTE_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "QUOTE_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "QUOTE_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "QUOTE_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "QUOTE_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
			MaxRequestBytes: int64(intWithDefault(lookup, "QUOTE_SERVER_MAX_REQUEST_BYTES", defaultMaxRequestBytes)),
		},
		Quote: QuoteConfig{
			CatalogFile:     stringWithDefault(lookup, "QUOTE_CATALOG_FILE", ""),
			DefaultCurrency: strings.ToUpper(stringWithDefault(lookup, "QUOTE_DEFAULT_CURRENCY", defaultBaseCurrency)),
			Rates:           rates,
			GroupDiscounts:  discounts,
			MaxPax:          intWithDefault(lookup, "QUOTE_MAX_PAX", defaultMaxPax),
			MaxDurationDays: intWithDefault(lookup, "QUOTE_MAX_DURATION_DAYS", defaultMaxDurationDays),
		},
		RateLimits: RateLimitConfig{
			QuotesPerMinute: intWithDefault(lookup, "QUOTE_RATELIMIT_PER_MIN", defaultQuotesPerMinute),
		},
		Features: FeatureFlags{
			EnablePromotions: boolWithDefault(lookup, "QUOTE_FEATURE_PROMOTIONS", true),
			IncludeExtras:    boolWithDefault(lookup, "QUOTE_FEATURE_INCLUDE_EXTRAS", false),
		},
	}

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config, invalid []string) error {
	missing := append([]string(nil), invalid...)

	if strings.TrimSpace(cfg.Server.Port) == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		missing = append(missing, "Server.ShutdownTimeout")
	}
	if cfg.Server.MaxRequestBytes <= 0 {
		missing = append(missing, "Server.MaxRequestBytes")
	}
	if len(cfg.Quote.DefaultCurrency) != 3 {
		missing = append(missing, "Quote.DefaultCurrency")
	}
	if cfg.Quote.MaxPax <= 0 {
		missing = append(missing, "Quote.MaxPax")
	}
	if cfg.Quote.MaxDurationDays <= 0 {
		missing = append(missing, "Quote.MaxDurationDays")
	}
	if cfg.RateLimits.QuotesPerMinute < 0 {
		missing = append(missing, "RateLimits.QuotesPerMinute")
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

// pairsWithDefault splits "k=v,k=v" into trimmed pairs, skipping blanks and entries without "=".
func pairsWithDefault(lookup func(string) (string, bool), key, fallback string) [][2]string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = fallback
	}
	var pairs [][2]string
	for _, entry := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok {
			continue
		}
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		pairs = append(pairs, [2]string{name, value})
	}
	return pairs
}

// floatMapWithDefault parses "EUR=0.92,GBP=0.79" and reports keys whose rate is not a positive number.
func floatMapWithDefault(lookup func(string) (string, bool), key string) (map[string]float64, []string) {
	values := make(map[string]float64)
	var invalid []string
	for _, pair := range pairsWithDefault(lookup, key, "") {
		code := strings.ToUpper(pair[0])
		rate, err := strconv.ParseFloat(pair[1], 64)
		if err != nil || rate <= 0 {
			invalid = append(invalid, code)
			continue
		}
		values[code] = rate
	}
	return values, invalid
}

// tierMapWithDefault parses "6=5,10=10" into minimum passenger count to discount percentage.
func tierMapWithDefault(lookup func(string) (string, bool), key, fallback string) (map[int]float64, []string) {
	values := make(map[int]float64)
	var invalid []string
	for _, pair := range pairsWithDefault(lookup, key, fallback) {
		minPax, err := strconv.Atoi(pair[0])
		if err != nil || minPax < 1 {
			invalid = append(invalid, pair[0])
			continue
		}
		percent, err := strconv.ParseFloat(pair[1], 64)
		if err != nil || percent < 0 || percent > 100 {
			invalid = append(invalid, pair[0])
			continue
		}
		values[minPax] = percent
	}
	return values, invalid
}
