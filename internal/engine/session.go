package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skuflow/repricer/internal/model"
)

// ErrSessionTerminal rejects mutation of a session in a terminal state.
var ErrSessionTerminal = errors.New("session is in a terminal state")

// SessionLedger owns session lifecycle: it is the only code that moves a
// session through its state machine and it refuses mutation once a
// terminal state is reached.
type SessionLedger struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// NewSessionLedger creates an empty ledger.
func NewSessionLedger() *SessionLedger {
	return &SessionLedger{sessions: make(map[string]*model.Session)}
}

// Begin opens a pending session for a rule and trigger, snapshotting the
// rule configuration for auditability.
func (l *SessionLedger) Begin(r model.Rule, trig model.TriggerSource, now time.Time) *model.Session {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := &model.Session{
		ID:           uuid.NewString(),
		RuleID:       r.ID,
		RuleSnapshot: r,
		Status:       model.SessionPending,
		Trigger:      trig,
		StartedAt:    now,
	}
	l.sessions[s.ID] = s
	return s
}

// Start moves a pending session to running.
func (l *SessionLedger) Start(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	if s.Status.Terminal() {
		return ErrSessionTerminal
	}
	s.Status = model.SessionRunning
	return nil
}

// Append records one listing's execution result and updates the rolling
// counters. Appending to a terminal session is an error.
func (l *SessionLedger) Append(id string, res model.ExecutionResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	if s.Status.Terminal() {
		return ErrSessionTerminal
	}

	s.Results = append(s.Results, res)
	s.ProductsProcessed++
	if res.AlertRaised {
		s.AlertsRaised++
	}
	switch res.Outcome {
	case model.OutcomeSuccess:
		s.SuccessfulUpdates++
		s.TotalPriceChange += res.PriceChange
		if res.PriceChange > 0 {
			s.PriceIncreases++
		} else if res.PriceChange < 0 {
			s.PriceDecreases++
		}
	case model.OutcomeSkipped, model.OutcomeNoAction:
		s.SkippedUpdates++
	default:
		s.FailedUpdates++
	}
	return nil
}

// Complete finalizes the session. The terminal status is derived from the
// counters unless a critical error forces failure. Duration is fixed at
// this point; further mutation is rejected.
func (l *SessionLedger) Complete(id string, criticalError string, now time.Time) (model.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[id]
	if !ok {
		return model.Session{}, fmt.Errorf("session %s not found", id)
	}
	if s.Status.Terminal() {
		return *s, ErrSessionTerminal
	}

	switch {
	case criticalError != "":
		s.Status = model.SessionFailed
		s.CriticalError = criticalError
	case s.FailedUpdates > 0 && s.SuccessfulUpdates > 0:
		s.Status = model.SessionPartialSuccess
	case s.FailedUpdates > 0 && s.SuccessfulUpdates == 0:
		s.Status = model.SessionFailed
	default:
		s.Status = model.SessionCompleted
	}
	s.CompletedAt = now
	s.DurationMs = now.Sub(s.StartedAt).Milliseconds()
	return *s, nil
}

// Cancel marks a non-terminal session cancelled.
func (l *SessionLedger) Cancel(id string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	if s.Status.Terminal() {
		return ErrSessionTerminal
	}
	s.Status = model.SessionCancelled
	s.CompletedAt = now
	s.DurationMs = now.Sub(s.StartedAt).Milliseconds()
	return nil
}

// Get returns a copy of one session.
func (l *SessionLedger) Get(id string) (model.Session, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.sessions[id]
	if !ok {
		return model.Session{}, false
	}
	return *s, true
}

// StaleRunning returns sessions stuck in a non-terminal state longer than
// maxAge, for the reconciliation sweep to fail.
func (l *SessionLedger) StaleRunning(maxAge time.Duration, now time.Time) []model.Session {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []model.Session
	for _, s := range l.sessions {
		if !s.Status.Terminal() && now.Sub(s.StartedAt) > maxAge {
			out = append(out, *s)
		}
	}
	return out
}

// SuccessRate is a pure derivation over a session snapshot: the fraction
// of processed listings that updated successfully, 0-100.
func SuccessRate(s model.Session) float64 {
	if s.ProductsProcessed == 0 {
		return 0
	}
	return float64(s.SuccessfulUpdates) / float64(s.ProductsProcessed) * 100
}

// Summarize renders a human-readable session summary with recommendation
// text derived from the outcome mix.
func Summarize(s model.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "session %s (%s) rule %q: %d processed, %d updated, %d failed, %d skipped",
		s.ID, s.Status, s.RuleSnapshot.Name,
		s.ProductsProcessed, s.SuccessfulUpdates, s.FailedUpdates, s.SkippedUpdates)
	if s.SuccessfulUpdates > 0 {
		fmt.Fprintf(&b, "; net price change $%.2f (%d up, %d down)",
			s.TotalPriceChange, s.PriceIncreases, s.PriceDecreases)
	}
	if s.CriticalError != "" {
		fmt.Fprintf(&b, "; critical: %s", s.CriticalError)
	}

	for _, r := range Recommendations(s) {
		fmt.Fprintf(&b, "\n  - %s", r)
	}
	return b.String()
}

// Recommendations derives tuning advice from a completed session.
func Recommendations(s model.Session) []string {
	var recs []string

	violations := 0
	computeFailures := 0
	for _, r := range s.Results {
		switch r.Outcome {
		case model.OutcomeConstraintViolation:
			violations++
		case model.OutcomeComputationFailed:
			computeFailures++
		}
	}

	if s.ProductsProcessed > 0 {
		rate := SuccessRate(s)
		if rate < 50 && violations > s.ProductsProcessed/3 {
			recs = append(recs, "low success rate indicates overly restrictive constraints; review min/max price and step limits")
		}
		if computeFailures > 0 {
			recs = append(recs, fmt.Sprintf("%d listings failed price computation; check action parameters and competitor coverage", computeFailures))
		}
		if s.SkippedUpdates == s.ProductsProcessed {
			recs = append(recs, "no listings matched the trigger conditions; the rule may be misconfigured for this trigger")
		}
	}
	return recs
}
