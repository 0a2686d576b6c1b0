// Package strategy generates and scores candidate pricing strategies for
// a listing, bounded by its price floor and ceiling, and returns the best
// candidate with reasoning, expected outcomes, enumerated risks and the
// next-best alternatives.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/skuflow/repricer/internal/buybox"
	"github.com/skuflow/repricer/internal/config"
	"github.com/skuflow/repricer/internal/market"
	"github.com/skuflow/repricer/internal/model"
)

// Strategy names.
const (
	StrategyPriceMatch         = "price_match"
	StrategyAggressiveUndercut = "aggressive_undercut"
	StrategyPremiumPosition    = "premium_position"
	StrategyMarginTarget       = "margin_target"
	StrategyBuyBoxOptimized    = "buybox_optimized"
)

// Business goals and risk tolerances declared by the caller.
type Goal string

const (
	GoalMaximizeProfit Goal = "maximize_profit"
	GoalMaximizeVolume Goal = "maximize_volume"
	GoalBalanced       Goal = "balanced"
)

type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

// ErrNoCandidates is returned when no strategy survives the listing's
// price bounds.
var ErrNoCandidates = errors.New("no viable pricing strategy")

// Request carries everything the strategist needs for one decision.
type Request struct {
	Listing     model.Listing
	Snapshot    model.CompetitiveSnapshot
	Conditions  market.Conditions
	Our         buybox.OurOffer // price field ignored; attributes used
	Competitors []model.Offer
	Goal        Goal
	Risk        RiskTolerance
	// TargetMarginPct drives the margin_target strategy; zero uses 30.
	TargetMarginPct float64
	// History feeds the elasticity estimate; empty falls back to the
	// configured default coefficient.
	History []model.PriceHistoryEntry
}

// Risk is an identified downside of a candidate with mitigation text.
type Risk struct {
	Kind       string `json:"kind"`
	Severity   string `json:"severity"`
	Mitigation string `json:"mitigation"`
}

// Candidate is one generated strategy with its score breakdown.
type Candidate struct {
	Strategy       string  `json:"strategy"`
	Price          float64 `json:"price"`
	Score          float64 `json:"score"` // 0-100
	WinProbability float64 `json:"win_probability"`
	MarginPct      float64 `json:"margin_pct"`
	Reasoning      string  `json:"reasoning"`
	Risks          []Risk  `json:"risks,omitempty"`
}

// Outcomes are the expected effects of applying the best candidate.
// Revenue and order impacts come from the configured market-model
// heuristics (baseline revenue, buy-box share, average order value) and
// are estimates, not measurements.
type Outcomes struct {
	WinProbability      float64 `json:"win_probability"`
	MarginImpactPct     float64 `json:"margin_impact_pct"` // points vs current margin
	SalesImpactPct      float64 `json:"sales_impact_pct"`  // demand change estimate
	RevenueImpactPerDay float64 `json:"revenue_impact_per_day"`
	OrdersImpactPerDay  float64 `json:"orders_impact_per_day"`
}

// Recommendation is the strategist's full answer.
type Recommendation struct {
	Best         Candidate   `json:"best"`
	Alternatives []Candidate `json:"alternatives"`
	Expected     Outcomes    `json:"expected"`
	GeneratedAt  time.Time   `json:"generated_at"`
}

// Strategist scores pricing strategies using the configured market-model
// heuristics.
type Strategist struct {
	h config.Heuristics
}

// New creates a strategist.
func New(h config.Heuristics) *Strategist {
	return &Strategist{h: h}
}

// Recommend generates, scores and ranks candidates, returning the best
// with its expected outcomes and the remaining alternatives.
func (s *Strategist) Recommend(req Request) (*Recommendation, error) {
	candidates := s.generate(req)
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	for i := range candidates {
		s.score(&candidates[i], req)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	best := candidates[0]
	points := PointsFromHistory(req.History, req.Listing.SalesVelocity)
	elasticity := EstimateElasticity(points, s.h.DefaultElasticity)
	changePct := 0.0
	if req.Listing.CurrentPrice > 0 {
		changePct = (best.Price - req.Listing.CurrentPrice) / req.Listing.CurrentPrice * 100
	}
	salesImpact := elasticity * changePct

	// Daily revenue/order impact under the configured market model:
	// revenue scales with both the price move and the demand response.
	dailyRevenue := s.h.BaselineRevenue * 24 * s.h.BuyBoxShare
	revenueFactor := (1 + changePct/100) * (1 + salesImpact/100)
	revenueImpact := dailyRevenue * (revenueFactor - 1)
	ordersImpact := 0.0
	if s.h.AvgOrderValue > 0 {
		ordersImpact = dailyRevenue * salesImpact / 100 / s.h.AvgOrderValue
	}

	rec := &Recommendation{
		Best:         best,
		Alternatives: candidates[1:],
		Expected: Outcomes{
			WinProbability:      best.WinProbability,
			MarginImpactPct:     best.MarginPct - req.Listing.MarginPct(),
			SalesImpactPct:      salesImpact,
			RevenueImpactPerDay: roundCents(revenueImpact),
			OrdersImpactPerDay:  math.Round(ordersImpact*10) / 10,
		},
		GeneratedAt: time.Now(),
	}
	return rec, nil
}

// generate builds the candidate set, clamped to the listing's bounds.
// Premium positioning only appears when the market admits it.
func (s *Strategist) generate(req Request) []Candidate {
	var candidates []Candidate
	snap := req.Snapshot

	add := func(name string, price float64, reasoning string) {
		price = clampToListing(price, req.Listing)
		if price <= 0 {
			return
		}
		candidates = append(candidates, Candidate{
			Strategy:  name,
			Price:     roundCents(price),
			Reasoning: reasoning,
		})
	}

	if snap.MinPrice > 0 {
		add(StrategyPriceMatch, snap.MinPrice,
			fmt.Sprintf("match the lowest competitor at $%.2f", snap.MinPrice))
		add(StrategyAggressiveUndercut, snap.MinPrice*0.97,
			fmt.Sprintf("undercut the lowest competitor $%.2f by 3%%", snap.MinPrice))
	}

	if req.Conditions.IsPremiumFriendly() && snap.MedianPrice > 0 {
		add(StrategyPremiumPosition, snap.MedianPrice*1.08,
			fmt.Sprintf("premium position above the $%.2f median; %s competition, %s demand",
				snap.MedianPrice, req.Conditions.CompetitionLevel, req.Conditions.DemandLevel))
	}

	targetMargin := req.TargetMarginPct
	if targetMargin <= 0 {
		targetMargin = 30
	}
	if req.Listing.CostPrice > 0 && targetMargin < 100 {
		price := req.Listing.CostPrice / (1 - targetMargin/100)
		add(StrategyMarginTarget, price,
			fmt.Sprintf("hold a %.0f%% margin on cost $%.2f", targetMargin, req.Listing.CostPrice))
	}

	if price, ok := buybox.PriceForProbability(req.Our, req.Competitors, 90); ok {
		add(StrategyBuyBoxOptimized, price,
			fmt.Sprintf("highest price reaching 90%% buy-box probability ($%.2f)", price))
	}

	return candidates
}

// score fills in the candidate's probability, margin and composite score.
// The composite is a weighted sum: margin delta, competitive rank, win
// probability (30% weight), a risk penalty, and goal/risk alignment.
func (s *Strategist) score(c *Candidate, req Request) {
	our := req.Our
	our.Price = c.Price
	c.WinProbability = buybox.WinProbability(our, req.Competitors)

	if c.Price > 0 && req.Listing.CostPrice > 0 {
		c.MarginPct = (c.Price - req.Listing.CostPrice) / c.Price * 100
	}

	score := 50.0

	marginDelta := c.MarginPct - req.Listing.MarginPct()
	score += clamp(marginDelta*1.5, -20, 20)

	rank := rankAtPrice(c.Price, req.Competitors)
	switch {
	case rank == 1:
		score += 15
	case rank <= 3:
		score += 8
	}

	score += (c.WinProbability - 50) * 0.30

	penalty, risks := s.assessRisk(c, req)
	score -= penalty
	c.Risks = risks

	score += goalAlignment(c, req)

	c.Score = clamp(score, 0, 100)
}

// assessRisk returns the score penalty and the enumerated risks with
// mitigation text: large price swings, margin-floor breaches, volatile
// markets and crowded fields all cost points.
func (s *Strategist) assessRisk(c *Candidate, req Request) (float64, []Risk) {
	var penalty float64
	var risks []Risk

	changePct := 0.0
	if req.Listing.CurrentPrice > 0 {
		changePct = math.Abs(c.Price-req.Listing.CurrentPrice) / req.Listing.CurrentPrice * 100
	}
	switch {
	case changePct > 10:
		penalty += 10
		risks = append(risks, Risk{
			Kind:       "large_price_swing",
			Severity:   "medium",
			Mitigation: "apply the change in steps over multiple sessions",
		})
	case changePct > 5:
		penalty += 5
	}

	if c.MarginPct < 10 && req.Listing.CostPrice > 0 {
		penalty += 15
		risks = append(risks, Risk{
			Kind:       "margin_erosion",
			Severity:   "high",
			Mitigation: "set a hard minimum price above the break-even point",
		})
	}

	if req.Conditions.Condition == market.ConditionVolatile {
		penalty += 5
		risks = append(risks, Risk{
			Kind:       "volatile_market",
			Severity:   "medium",
			Mitigation: "shorten the monitoring interval until prices settle",
		})
	}
	if req.Conditions.CompetitionLevel == market.LevelHigh &&
		c.Strategy == StrategyAggressiveUndercut {
		penalty += 5
		risks = append(risks, Risk{
			Kind:       "price_war",
			Severity:   "high",
			Mitigation: "prefer matching over undercutting in crowded fields",
		})
	}
	if c.Strategy == StrategyPremiumPosition {
		risks = append(risks, Risk{
			Kind:       "buybox_loss",
			Severity:   "medium",
			Mitigation: "watch win probability and fall back to match on loss",
		})
	}

	return penalty, risks
}

// goalAlignment rewards candidates matching the declared business goal
// and risk tolerance.
func goalAlignment(c *Candidate, req Request) float64 {
	adj := 0.0
	switch req.Goal {
	case GoalMaximizeVolume:
		adj += (c.WinProbability - 50) * 0.10
	case GoalMaximizeProfit:
		adj += clamp((c.MarginPct-20)*0.5, -10, 10)
	}

	changePct := 0.0
	if req.Listing.CurrentPrice > 0 {
		changePct = math.Abs(c.Price-req.Listing.CurrentPrice) / req.Listing.CurrentPrice * 100
	}
	switch req.Risk {
	case RiskConservative:
		adj -= clamp(changePct*0.5, 0, 10)
	case RiskAggressive:
		if c.Strategy == StrategyAggressiveUndercut || c.Strategy == StrategyPremiumPosition {
			adj += 5
		}
	}
	return adj
}

func rankAtPrice(price float64, competitors []model.Offer) int {
	rank := 1
	for _, c := range competitors {
		if c.InStock && c.Price < price {
			rank++
		}
	}
	return rank
}

func clampToListing(price float64, l model.Listing) float64 {
	if l.MinPrice > 0 && price < l.MinPrice {
		price = l.MinPrice
	}
	if l.MaxPrice > 0 && price > l.MaxPrice {
		price = l.MaxPrice
	}
	return price
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundCents(p float64) float64 {
	return math.Round(p*100) / 100
}
