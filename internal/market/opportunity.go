package market

import (
	"fmt"
	"sort"
	"time"

	"github.com/skuflow/repricer/internal/model"
)

// Opportunity kinds.
const (
	OpportunityPriceGap        = "price_gap"
	OpportunityWeakCompetition = "weak_competition"
)

// Gap thresholds in dollars.
const (
	minGap          = 1.0
	highSeverityGap = 5.0
)

// Opportunity is an actionable pricing gap or weakness in the competitor
// field, with a suggested price and a confidence score.
type Opportunity struct {
	ASIN           string    `json:"asin"`
	Kind           string    `json:"kind"`
	Severity       string    `json:"severity"` // "high", "medium", "low"
	SuggestedPrice float64   `json:"suggested_price"`
	Confidence     float64   `json:"confidence"` // 0-100
	Description    string    `json:"description"`
	DetectedAt     time.Time `json:"detected_at"`
}

// ScanOpportunities looks for exploitable structure in the current
// competitor field: price gaps wide enough to position inside, and weak
// competition (mostly non-prime or low-feedback sellers).
func (a *Analyzer) ScanOpportunities(asin string, now time.Time) []Opportunity {
	records := a.store.ActiveCompetitors(asin)
	return FindOpportunities(asin, records, now)
}

// FindOpportunities is the pure scan over a competitor field, separated
// from the store lookup for testability.
func FindOpportunities(asin string, records []model.CompetitorRecord, now time.Time) []Opportunity {
	var opps []Opportunity

	prices := snapshotPrices(records)
	sort.Float64s(prices)

	for i := 1; i < len(prices); i++ {
		gap := prices[i] - prices[i-1]
		if gap < minGap {
			continue
		}
		severity := "medium"
		if gap > highSeverityGap {
			severity = "high"
		}
		suggested := (prices[i-1] + prices[i]) / 2
		// Confidence grows with the gap but caps before certainty.
		confidence := 50 + gap*5
		if confidence > 90 {
			confidence = 90
		}
		opps = append(opps, Opportunity{
			ASIN:           asin,
			Kind:           OpportunityPriceGap,
			Severity:       severity,
			SuggestedPrice: roundCents(suggested),
			Confidence:     confidence,
			Description: fmt.Sprintf("$%.2f gap between $%.2f and $%.2f, room to position mid-gap",
				gap, prices[i-1], prices[i]),
			DetectedAt: now,
		})
	}

	if weak, count := weakCompetition(records); weak {
		suggested := 0.0
		if len(prices) > 0 {
			// Price just under the strongest competitor's level.
			suggested = roundCents(prices[len(prices)-1] * 0.97)
		}
		opps = append(opps, Opportunity{
			ASIN:           asin,
			Kind:           OpportunityWeakCompetition,
			Severity:       "medium",
			SuggestedPrice: suggested,
			Confidence:     65,
			Description: fmt.Sprintf("%d of %d competitors lack prime or strong feedback",
				count, len(records)),
			DetectedAt: now,
		})
	}

	return opps
}

// weakCompetition is true when over half the competitors lack prime
// eligibility or have sub-90 feedback counts.
func weakCompetition(records []model.CompetitorRecord) (bool, int) {
	if len(records) == 0 {
		return false, 0
	}
	weak := 0
	for _, r := range records {
		if !r.Prime || r.FeedbackCount < 90 {
			weak++
		}
	}
	return weak*2 > len(records), weak
}

func roundCents(p float64) float64 {
	return float64(int(p*100+0.5)) / 100
}
