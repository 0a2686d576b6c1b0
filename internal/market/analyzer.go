// Package market derives categorical market conditions for an ASIN from
// the intelligence store's history and competitor records: volatility,
// competition, demand, seasonality and trend, combined into a single
// condition the strategist and rules can branch on.
package market

import (
	"math"
	"time"

	"github.com/skuflow/repricer/internal/intel"
	"github.com/skuflow/repricer/internal/model"
)

// Level buckets for competition and demand.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// Trend directions.
const (
	TrendUpward   = "upward"
	TrendDownward = "downward"
	TrendStable   = "stable"
	TrendVolatile = "volatile"
)

// Combined market conditions, in precedence order.
const (
	ConditionVolatile        = "volatile"
	ConditionHighCompetition = "high_competition"
	ConditionLowCompetition  = "low_competition"
	ConditionStable          = "stable"
	ConditionNormal          = "normal"
)

// Volatility thresholds on the coefficient of variation.
const (
	volatileThreshold = 0.30
	stableThreshold   = 0.10
)

// Competition thresholds on active competitor count.
const (
	lowCompetitionMax    = 3
	mediumCompetitionMax = 8
)

// Conditions is the analyzer's output for one ASIN.
type Conditions struct {
	ASIN              string    `json:"asin"`
	Volatility        float64   `json:"volatility"`
	CompetitionLevel  string    `json:"competition_level"`
	ActiveCompetitors int       `json:"active_competitors"`
	DemandLevel       string    `json:"demand_level"`
	SeasonalFactor    float64   `json:"seasonal_factor"`
	Trend             string    `json:"trend"`
	Condition         string    `json:"condition"`
	AnalyzedAt        time.Time `json:"analyzed_at"`
}

// Analyzer reads the intelligence store; it holds no state of its own.
type Analyzer struct {
	store *intel.Store
}

// NewAnalyzer creates a market analyzer over the given store.
func NewAnalyzer(store *intel.Store) *Analyzer {
	return &Analyzer{store: store}
}

// Analyze computes the market conditions for an ASIN over the lookback
// window ending at now.
func (a *Analyzer) Analyze(asin string, lookback time.Duration, now time.Time) Conditions {
	since := now.Add(-lookback)
	history := a.store.History(asin, since)
	events := a.store.BuyBoxEvents(asin, since)
	active := a.store.ActiveCompetitors(asin)

	cond := Conditions{
		ASIN:              asin,
		ActiveCompetitors: len(active),
		AnalyzedAt:        now,
	}

	prices := make([]float64, 0, len(history))
	for _, h := range history {
		prices = append(prices, h.Price)
	}

	cond.Volatility = CoefficientOfVariation(prices)
	cond.CompetitionLevel = competitionLevel(len(active))
	cond.DemandLevel = demandLevel(len(history), len(events))
	cond.SeasonalFactor = SeasonalFactor(now.Month())
	cond.Trend = DetectTrend(prices, cond.Volatility)
	cond.Condition = combine(cond)

	return cond
}

// CoefficientOfVariation is standard deviation over mean, the volatility
// measure used throughout the engine. Zero when fewer than two prices.
func CoefficientOfVariation(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, p := range prices {
		diff := p - mean
		variance += diff * diff
	}
	variance /= float64(len(prices) - 1)
	return math.Sqrt(variance) / mean
}

func competitionLevel(active int) string {
	switch {
	case active <= lowCompetitionMax:
		return LevelLow
	case active <= mediumCompetitionMax:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// demandLevel is a heuristic on recent market activity: price changes and
// buy-box transitions both indicate buyer pressure.
func demandLevel(priceChanges, buyBoxEvents int) string {
	activity := priceChanges + 2*buyBoxEvents
	switch {
	case activity >= 20:
		return LevelHigh
	case activity >= 8:
		return LevelMedium
	default:
		return LevelLow
	}
}

// SeasonalFactor maps the calendar month to a demand multiplier. Holiday
// season peaks; the new-year slump dips.
func SeasonalFactor(m time.Month) float64 {
	switch m {
	case time.November, time.December:
		return 1.3
	case time.July:
		return 1.15
	case time.January, time.February:
		return 0.85
	default:
		return 1.0
	}
}

// DetectTrend classifies the direction of the last five price points.
// High volatility overrides the monotonicity check.
func DetectTrend(prices []float64, volatility float64) string {
	if volatility >= volatileThreshold {
		return TrendVolatile
	}
	if len(prices) < 2 {
		return TrendStable
	}

	recent := prices
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	rising, falling := true, true
	for i := 1; i < len(recent); i++ {
		if recent[i] < recent[i-1] {
			rising = false
		}
		if recent[i] > recent[i-1] {
			falling = false
		}
	}
	switch {
	case rising && !falling:
		return TrendUpward
	case falling && !rising:
		return TrendDownward
	default:
		return TrendStable
	}
}

// combine folds the individual signals into one categorical condition.
// Precedence: volatility first, then the competition and demand mix.
func combine(c Conditions) string {
	if c.Volatility >= volatileThreshold {
		return ConditionVolatile
	}
	if c.CompetitionLevel == LevelHigh {
		return ConditionHighCompetition
	}
	if c.CompetitionLevel == LevelLow && c.DemandLevel != LevelLow {
		return ConditionLowCompetition
	}
	if c.Volatility < stableThreshold && c.Trend == TrendStable {
		return ConditionStable
	}
	return ConditionNormal
}

// IsPremiumFriendly reports whether conditions admit premium positioning:
// low competition or high demand.
func (c Conditions) IsPremiumFriendly() bool {
	return c.CompetitionLevel == LevelLow || c.DemandLevel == LevelHigh
}

// snapshotPrices extracts current prices from records, ascending not
// guaranteed.
func snapshotPrices(records []model.CompetitorRecord) []float64 {
	prices := make([]float64, 0, len(records))
	for _, r := range records {
		if r.CurrentPrice > 0 {
			prices = append(prices, r.CurrentPrice)
		}
	}
	return prices
}
