package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all engine tunables, loaded from the environment.
type Config struct {
	// Scheduler
	TickInterval    time.Duration // orchestrator tick
	MonitorInterval time.Duration // competitor monitoring tick

	// Monitoring
	MonitorBatchSize     int           // max records per monitoring pass
	MonitorCallDelay     time.Duration // delay between offer-source calls
	MaxConsecutiveErrors int           // skip records beyond this
	BaseCheckIntervalMin int           // starting cadence per record
	MaxCheckIntervalMin  int           // backoff cap
	BackoffMultiplier    float64

	// Alerting
	PriceChangeThreshold float64 // minimum delta recorded as history
	HighSeverityPct      float64
	MediumSeverityPct    float64

	// Offer source
	SourceKind      string // "mock" or "http"
	SourceBaseURL   string
	SourceRateLimit float64 // requests per second
	SourceTimeout   time.Duration

	// Persistence
	StatePath string // intel store snapshot file, empty disables

	Heuristics Heuristics
}

// Heuristics are the market-model parameters the scoring and forecasting
// code relies on. The defaults are placeholders, not derived from real
// data; deployments should calibrate them per category.
type Heuristics struct {
	BuyBoxShare       float64 // fraction of sales going through the buy box
	BaselineRevenue   float64 // dollars per hour at current price
	AvgOrderValue     float64
	DefaultElasticity float64 // demand change per 1% price change
}

// Defaults returns the engine's built-in configuration.
func Defaults() Config {
	return Config{
		TickInterval:         5 * time.Minute,
		MonitorInterval:      10 * time.Minute,
		MonitorBatchSize:     50,
		MonitorCallDelay:     500 * time.Millisecond,
		MaxConsecutiveErrors: 5,
		BaseCheckIntervalMin: 60,
		MaxCheckIntervalMin:  480,
		BackoffMultiplier:    1.5,
		PriceChangeThreshold: 0.01,
		HighSeverityPct:      10,
		MediumSeverityPct:    5,
		SourceKind:           "mock",
		SourceRateLimit:      1,
		SourceTimeout:        15 * time.Second,
		Heuristics: Heuristics{
			BuyBoxShare:       0.70,
			BaselineRevenue:   100,
			AvgOrderValue:     25,
			DefaultElasticity: -1.5,
		},
	}
}

// Load reads .env if present and overlays environment variables on the
// defaults. A missing .env file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	var err error
	if err = overlayDuration(&cfg.TickInterval, "REPRICER_TICK_INTERVAL"); err != nil {
		return cfg, err
	}
	if err = overlayDuration(&cfg.MonitorInterval, "REPRICER_MONITOR_INTERVAL"); err != nil {
		return cfg, err
	}
	if err = overlayInt(&cfg.MonitorBatchSize, "REPRICER_MONITOR_BATCH_SIZE"); err != nil {
		return cfg, err
	}
	if err = overlayDuration(&cfg.MonitorCallDelay, "REPRICER_MONITOR_CALL_DELAY"); err != nil {
		return cfg, err
	}
	if err = overlayInt(&cfg.MaxConsecutiveErrors, "REPRICER_MAX_CONSECUTIVE_ERRORS"); err != nil {
		return cfg, err
	}
	if err = overlayInt(&cfg.BaseCheckIntervalMin, "REPRICER_BASE_CHECK_INTERVAL_MIN"); err != nil {
		return cfg, err
	}
	if err = overlayInt(&cfg.MaxCheckIntervalMin, "REPRICER_MAX_CHECK_INTERVAL_MIN"); err != nil {
		return cfg, err
	}
	if err = overlayFloat(&cfg.BackoffMultiplier, "REPRICER_BACKOFF_MULTIPLIER"); err != nil {
		return cfg, err
	}
	if err = overlayFloat(&cfg.SourceRateLimit, "REPRICER_SOURCE_RATE_LIMIT"); err != nil {
		return cfg, err
	}
	if err = overlayDuration(&cfg.SourceTimeout, "REPRICER_SOURCE_TIMEOUT"); err != nil {
		return cfg, err
	}
	if err = overlayFloat(&cfg.Heuristics.BuyBoxShare, "REPRICER_BUYBOX_SHARE"); err != nil {
		return cfg, err
	}
	if err = overlayFloat(&cfg.Heuristics.BaselineRevenue, "REPRICER_BASELINE_REVENUE"); err != nil {
		return cfg, err
	}
	if err = overlayFloat(&cfg.Heuristics.AvgOrderValue, "REPRICER_AVG_ORDER_VALUE"); err != nil {
		return cfg, err
	}
	if err = overlayFloat(&cfg.Heuristics.DefaultElasticity, "REPRICER_DEFAULT_ELASTICITY"); err != nil {
		return cfg, err
	}

	if v := os.Getenv("REPRICER_SOURCE"); v != "" {
		cfg.SourceKind = v
	}
	if v := os.Getenv("REPRICER_SOURCE_BASE_URL"); v != "" {
		cfg.SourceBaseURL = v
	}
	if v := os.Getenv("REPRICER_STATE_PATH"); v != "" {
		cfg.StatePath = v
	}

	return cfg, nil
}

func overlayDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = d
	return nil
}

func overlayInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = n
	return nil
}

func overlayFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = f
	return nil
}
