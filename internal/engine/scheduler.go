package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/skuflow/repricer/internal/model"
)

// Scheduler fires periodic scheduled-trigger ticks into the orchestrator.
// Ticks are single-flight: if a tick is still running when the next one
// fires, the new tick is dropped, not queued. A stale-session sweep runs
// on the same cadence.
type Scheduler struct {
	orch     *Orchestrator
	ledger   *SessionLedger
	interval time.Duration
	maxAge   time.Duration
	log      zerolog.Logger

	cron   *cron.Cron
	inTick atomic.Bool

	// TicksDropped counts ticks skipped because a previous tick was
	// still in flight.
	TicksDropped atomic.Int64
}

// NewScheduler creates a scheduler; Start must be called to begin ticking.
// maxSessionAge bounds how long a session may stay non-terminal before
// the sweep fails it.
func NewScheduler(orch *Orchestrator, ledger *SessionLedger, interval, maxSessionAge time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		orch:     orch,
		ledger:   ledger,
		interval: interval,
		maxAge:   maxSessionAge,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the tick job and begins the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("registering tick job: %w", err)
	}
	s.cron.Start()
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}
	s.log.Info().Msg("scheduler stopped")
}

// Tick runs one scheduled evaluation pass. Safe to call directly; the
// single-flight guard applies either way.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.inTick.CompareAndSwap(false, true) {
		s.TicksDropped.Add(1)
		s.log.Warn().Msg("tick still in flight, dropping this tick")
		return
	}
	defer s.inTick.Store(false)

	start := time.Now()
	s.sweepStale(start)

	sessions := s.orch.HandleTrigger(ctx, model.TriggerSource{Kind: model.TriggerScheduled})
	s.log.Debug().
		Int("sessions", len(sessions)).
		Dur("elapsed", time.Since(start)).
		Msg("tick complete")
}

// sweepStale fails sessions stuck non-terminal past the age limit.
func (s *Scheduler) sweepStale(now time.Time) {
	for _, st := range s.ledger.StaleRunning(s.maxAge, now) {
		if _, err := s.ledger.Complete(st.ID, "session exceeded maximum age", now); err == nil {
			s.log.Warn().Str("session", st.ID).Str("rule", st.RuleID).Msg("stale session failed by sweep")
		}
	}
}
