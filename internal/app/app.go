// Package app assembles the repricing engine from configuration and runs
// it until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/skuflow/repricer/internal/alert"
	"github.com/skuflow/repricer/internal/buybox"
	"github.com/skuflow/repricer/internal/config"
	"github.com/skuflow/repricer/internal/engine"
	"github.com/skuflow/repricer/internal/intel"
	"github.com/skuflow/repricer/internal/market"
	"github.com/skuflow/repricer/internal/monitor"
	"github.com/skuflow/repricer/internal/source"
	"github.com/skuflow/repricer/internal/strategy"
)

// App is the wired engine: every component constructed, nothing running
// until Run.
type App struct {
	Config       config.Config
	Log          zerolog.Logger
	Store        *intel.Store
	Rules        *engine.RuleStore
	Ledger       *engine.SessionLedger
	Orchestrator *engine.Orchestrator
	Scheduler    *engine.Scheduler
	Monitor      *monitor.Monitor
	Alerts       *alert.Dispatcher

	monitorCron *cron.Cron
}

// Deps are the external collaborators the engine cannot construct itself.
type Deps struct {
	Provider engine.ListingProvider
	Applier  engine.PriceApplier
	Identity engine.Identity
	// Source overrides the configured offer source when non-nil.
	Source source.OfferSource
	// Sinks receive alerts in addition to the structured log.
	Sinks []alert.Sink
}

// New builds the full engine from configuration. State is loaded from
// the configured snapshot file when one is set.
func New(cfg config.Config, d Deps, log zerolog.Logger) (*App, error) {
	if d.Provider == nil || d.Applier == nil {
		return nil, fmt.Errorf("listing provider and price applier are required")
	}

	sinks := append([]alert.Sink{alert.NewLogSink(log)}, d.Sinks...)
	dispatcher := alert.NewDispatcher(alert.SeverityLow, sinks...)

	store := intel.NewStore(intel.Options{
		PriceChangeThreshold: cfg.PriceChangeThreshold,
		HighSeverityPct:      cfg.HighSeverityPct,
		MediumSeverityPct:    cfg.MediumSeverityPct,
		BaseCheckIntervalMin: cfg.BaseCheckIntervalMin,
		MaxCheckIntervalMin:  cfg.MaxCheckIntervalMin,
		BackoffMultiplier:    cfg.BackoffMultiplier,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		TrackNewSellers:      true,
	})
	if cfg.StatePath != "" {
		if err := store.Load(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("loading store state: %w", err)
		}
	}

	src := d.Source
	if src == nil {
		var err error
		src, err = buildSource(cfg)
		if err != nil {
			return nil, err
		}
	}

	marketAnalyzer := market.NewAnalyzer(store)
	bbAnalyzer := buybox.NewAnalyzer(store, d.Identity.SellerID)
	strategist := strategy.New(cfg.Heuristics)

	rules := engine.NewRuleStore()
	ledger := engine.NewSessionLedger()
	orch := engine.NewOrchestrator(engine.Deps{
		Rules:      rules,
		Ledger:     ledger,
		Store:      store,
		Market:     marketAnalyzer,
		Strategist: strategist,
		BuyBox:     bbAnalyzer,
		Provider:   d.Provider,
		Applier:    d.Applier,
		Alerts:     dispatcher,
		Identity:   d.Identity,
		Log:        log,
	})

	sched := engine.NewScheduler(orch, ledger, cfg.TickInterval, 4*cfg.TickInterval, log)

	budget := monitor.NewCallBudget(cfg.MonitorBatchSize, cfg.MonitorInterval/time.Duration(maxInt(cfg.MonitorBatchSize, 1)))
	mon := monitor.New(src, store, budget, dispatcher, orch, monitor.Options{
		BatchSize: cfg.MonitorBatchSize,
		CallDelay: cfg.MonitorCallDelay,
		OurSeller: d.Identity.SellerID,
	}, log)

	return &App{
		Config:       cfg,
		Log:          log,
		Store:        store,
		Rules:        rules,
		Ledger:       ledger,
		Orchestrator: orch,
		Scheduler:    sched,
		Monitor:      mon,
		Alerts:       dispatcher,
	}, nil
}

// Run starts the schedulers and blocks until the context is cancelled,
// then persists store state.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}

	a.monitorCron = cron.New()
	spec := fmt.Sprintf("@every %s", a.Config.MonitorInterval)
	if _, err := a.monitorCron.AddFunc(spec, func() { a.Monitor.RunPass(ctx) }); err != nil {
		return fmt.Errorf("registering monitor job: %w", err)
	}
	a.monitorCron.Start()
	a.Log.Info().
		Dur("tick", a.Config.TickInterval).
		Dur("monitor", a.Config.MonitorInterval).
		Str("source", a.Config.SourceKind).
		Msg("repricer running")

	<-ctx.Done()

	a.Scheduler.Stop()
	stopCtx := a.monitorCron.Stop()
	<-stopCtx.Done()

	if a.Config.StatePath != "" {
		if err := a.Store.Save(a.Config.StatePath); err != nil {
			a.Log.Error().Err(err).Msg("saving store state")
			return err
		}
	}
	a.Log.Info().Msg("repricer stopped")
	return nil
}

func buildSource(cfg config.Config) (source.OfferSource, error) {
	switch cfg.SourceKind {
	case "mock", "":
		return source.NewMockSource(), nil
	case "http":
		if cfg.SourceBaseURL == "" {
			return nil, fmt.Errorf("http source requires REPRICER_SOURCE_BASE_URL")
		}
		return source.NewHTTPSource(cfg.SourceBaseURL, cfg.SourceRateLimit, cfg.SourceTimeout), nil
	default:
		return nil, fmt.Errorf("unknown offer source %q", cfg.SourceKind)
	}
}

// NewLogger builds the process logger. Pretty console output when stderr
// is a terminal is left to the caller; services log JSON.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
