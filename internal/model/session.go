package model

import "time"

// SessionStatus is the state machine position of a repricing session.
// Terminal states (completed, failed, cancelled, partial_success) are
// final; no further result mutation is permitted.
type SessionStatus string

const (
	SessionPending        SessionStatus = "pending"
	SessionRunning        SessionStatus = "running"
	SessionCompleted      SessionStatus = "completed"
	SessionFailed         SessionStatus = "failed"
	SessionCancelled      SessionStatus = "cancelled"
	SessionPartialSuccess SessionStatus = "partial_success"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionCompleted, SessionFailed, SessionCancelled, SessionPartialSuccess:
		return true
	}
	return false
}

// OutcomeCode classifies one listing's result within a session.
type OutcomeCode string

const (
	OutcomeSuccess             OutcomeCode = "success"
	OutcomeNoAction            OutcomeCode = "no_action"
	OutcomeSkipped             OutcomeCode = "skipped"
	OutcomeConstraintViolation OutcomeCode = "constraint_violation"
	OutcomeComputationFailed   OutcomeCode = "computation_failed"
	OutcomeApplyFailed         OutcomeCode = "apply_failed"
)

// TriggerSource records what fired a session.
type TriggerSource struct {
	Kind    TriggerKind       `json:"kind"`
	ASIN    string            `json:"asin,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
}

// ExecutionResult is one listing's outcome within a session.
type ExecutionResult struct {
	ListingID           string               `json:"listing_id"`
	ASIN                string               `json:"asin"`
	Outcome             OutcomeCode          `json:"outcome"`
	OldPrice            float64              `json:"old_price"`
	NewPrice            float64              `json:"new_price,omitempty"`
	PriceChange         float64              `json:"price_change,omitempty"`
	Reason              string               `json:"reason,omitempty"`
	Snapshot            *CompetitiveSnapshot `json:"snapshot,omitempty"`
	ViolatedConstraints []string             `json:"violated_constraints,omitempty"`
	Error               string               `json:"error,omitempty"`
	AlertRaised         bool                 `json:"alert_raised,omitempty"`
	ProcessedAt         time.Time            `json:"processed_at"`
}

// Session is one execution of one rule against one trigger. It is a plain
// data holder; lifecycle transitions and summary derivation live in the
// engine package. RuleSnapshot preserves the rule configuration at
// execution time so the session stays auditable if the rule changes later.
type Session struct {
	ID           string        `json:"id"`
	RuleID       string        `json:"rule_id"`
	RuleSnapshot Rule          `json:"rule_snapshot"`
	Status       SessionStatus `json:"status"`
	Trigger      TriggerSource `json:"trigger"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	DurationMs  int64     `json:"duration_ms,omitempty"`

	ProductsProcessed int               `json:"products_processed"`
	SuccessfulUpdates int               `json:"successful_updates"`
	FailedUpdates     int               `json:"failed_updates"`
	SkippedUpdates    int               `json:"skipped_updates"`
	Results           []ExecutionResult `json:"results"`

	TotalPriceChange float64 `json:"total_price_change"`
	PriceIncreases   int     `json:"price_increases"`
	PriceDecreases   int     `json:"price_decreases"`
	AlertsRaised     int     `json:"alerts_raised"`

	ConcurrencyLevel int    `json:"concurrency_level,omitempty"`
	CriticalError    string `json:"critical_error,omitempty"`
}
