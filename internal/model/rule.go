package model

import "time"

// RuleStatus is the lifecycle state of a repricing rule.
type RuleStatus string

const (
	RuleDraft    RuleStatus = "draft"
	RuleActive   RuleStatus = "active"
	RulePaused   RuleStatus = "paused"
	RuleDisabled RuleStatus = "disabled"
	RuleArchived RuleStatus = "archived"
)

// ActionKind identifies the pricing action a rule performs. The set is
// closed: unknown kinds are rejected as a computation failure, never
// silently ignored.
type ActionKind string

const (
	ActionMatchLowest      ActionKind = "match_lowest"
	ActionUndercutByAmount ActionKind = "undercut_by_amount"
	ActionUndercutByPct    ActionKind = "undercut_by_percent"
	ActionIncreaseByAmount ActionKind = "increase_by_amount"
	ActionIncreaseByPct    ActionKind = "increase_by_percent"
	ActionSetFixed         ActionKind = "set_fixed"
	ActionMaintainMargin   ActionKind = "maintain_margin"
	// ActionOptimize delegates the price decision to the strategist.
	ActionOptimize ActionKind = "optimize"
	// ActionNone signals no price change (e.g. stop-selling rules).
	ActionNone ActionKind = "none"
)

// TriggerKind identifies the event class that can fire a rule.
type TriggerKind string

const (
	TriggerScheduled             TriggerKind = "scheduled"
	TriggerCompetitorPriceChange TriggerKind = "competitor_price_change"
	TriggerBuyBoxLost            TriggerKind = "buybox_lost"
	TriggerMarginBelow           TriggerKind = "margin_below"
	TriggerManual                TriggerKind = "manual"
)

// Combinator joins secondary trigger conditions.
type Combinator string

const (
	CombineAnd Combinator = "and"
	CombineOr  Combinator = "or"
)

// ScheduleFrequency controls how the orchestrator spaces rule executions.
type ScheduleFrequency string

const (
	ScheduleContinuous ScheduleFrequency = "continuous"
	ScheduleHourly     ScheduleFrequency = "hourly"
	ScheduleDaily      ScheduleFrequency = "daily"
	ScheduleCustom     ScheduleFrequency = "custom"
)

// Rule is a user-owned repricing policy. It is a plain data holder:
// eligibility, pricing and validation live in the rule package, and the
// orchestrator is the only writer of the execution counters.
type Rule struct {
	ID       string     `json:"id"`
	UserID   string     `json:"user_id"`
	Name     string     `json:"name"`
	Status   RuleStatus `json:"status"`
	IsActive bool       `json:"is_active"`
	Priority int        `json:"priority"`

	Targets     TargetSelector `json:"targets"`
	Trigger     TriggerSpec    `json:"trigger"`
	Action      ActionSpec     `json:"action"`
	Constraints ConstraintSet  `json:"constraints"`
	Schedule    ScheduleSpec   `json:"schedule"`

	LastExecutionTime time.Time   `json:"last_execution_time"`
	NextExecutionTime time.Time   `json:"next_execution_time"`
	ExecutionCount    int         `json:"execution_count"`
	Metrics           RuleMetrics `json:"metrics"`
	LastError         string      `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TargetSelector resolves the set of listings a rule applies to.
// Empty fields mean "no restriction".
type TargetSelector struct {
	ASINs         []string `json:"asins,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	MinPrice      float64  `json:"min_price,omitempty"`
	MaxPrice      float64  `json:"max_price,omitempty"`
	MinMarginPct  float64  `json:"min_margin_pct,omitempty"`
	MaxMarginPct  float64  `json:"max_margin_pct,omitempty"`
	ExcludedASINs []string `json:"excluded_asins,omitempty"`
}

// TriggerSpec is a primary condition plus optional secondaries joined with
// AND/OR, a cooldown, and a per-period execution cap.
type TriggerSpec struct {
	Primary      TriggerCondition   `json:"primary"`
	Secondary    []TriggerCondition `json:"secondary,omitempty"`
	Combine      Combinator         `json:"combine,omitempty"`
	Cooldown     time.Duration      `json:"cooldown,omitempty"`
	MaxPerPeriod int                `json:"max_per_period,omitempty"`
	Period       time.Duration      `json:"period,omitempty"`
}

// TriggerCondition is one matchable condition. Threshold carries the
// margin percentage for margin_below; other kinds ignore it.
type TriggerCondition struct {
	Kind      TriggerKind `json:"kind"`
	Threshold float64     `json:"threshold,omitempty"`
}

// ActionSpec is the tagged payload for an ActionKind. Only the field
// matching the kind is consulted.
type ActionSpec struct {
	Kind            ActionKind `json:"kind"`
	Amount          float64    `json:"amount,omitempty"`
	Percent         float64    `json:"percent,omitempty"`
	FixedPrice      float64    `json:"fixed_price,omitempty"`
	TargetMarginPct float64    `json:"target_margin_pct,omitempty"`
	NotifyOnChange  bool       `json:"notify_on_change,omitempty"`
}

// ConstraintSet holds the hard bounds a computed price must satisfy.
// Zero values disable the corresponding check.
type ConstraintSet struct {
	MinPrice        float64          `json:"min_price,omitempty"`
	MaxPrice        float64          `json:"max_price,omitempty"`
	MinMarginPct    float64          `json:"min_margin_pct,omitempty"`
	MaxMarginPct    float64          `json:"max_margin_pct,omitempty"`
	MaxIncrease     float64          `json:"max_increase,omitempty"`
	MaxDecrease     float64          `json:"max_decrease,omitempty"`
	MaxDailyChanges int              `json:"max_daily_changes,omitempty"`
	Blackouts       []BlackoutWindow `json:"blackouts,omitempty"`
	// Competitor-trust filters: offers below these floors are ignored
	// when computing competitive reference prices.
	MinCompetitorRating   float64 `json:"min_competitor_rating,omitempty"`
	MinCompetitorFeedback int     `json:"min_competitor_feedback,omitempty"`
}

// BlackoutWindow suppresses execution during a time-of-day range on the
// listed weekdays. Start and End are "15:04" clock strings; a window
// wrapping midnight is expressed as Start > End.
type BlackoutWindow struct {
	Days  []time.Weekday `json:"days"`
	Start string         `json:"start"`
	End   string         `json:"end"`
}

// ScheduleSpec controls when the orchestrator next considers the rule.
type ScheduleSpec struct {
	Frequency ScheduleFrequency `json:"frequency"`
	Every     time.Duration     `json:"every,omitempty"` // custom frequency only
}

// RuleMetrics are rolling counters maintained by the orchestrator after
// every session.
type RuleMetrics struct {
	TotalSessions     int       `json:"total_sessions"`
	SuccessfulUpdates int       `json:"successful_updates"`
	FailedUpdates     int       `json:"failed_updates"`
	SkippedUpdates    int       `json:"skipped_updates"`
	TotalPriceChange  float64   `json:"total_price_change"`
	AvgPriceChange    float64   `json:"avg_price_change"`
	LastSessionAt     time.Time `json:"last_session_at"`
}
