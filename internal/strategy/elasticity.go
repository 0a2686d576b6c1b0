package strategy

import (
	"math"
	"sort"

	"github.com/skuflow/repricer/internal/model"
)

// PricePoint pairs a historical price with the demand observed at it.
// Demand is whatever proxy the caller has: units per day, order counts.
type PricePoint struct {
	Price  float64 `json:"price"`
	Demand float64 `json:"demand"`
}

// ForecastPoint is one entry of the demand/profit forecast curve.
type ForecastPoint struct {
	Price        float64 `json:"price"`
	PriceChange  float64 `json:"price_change_pct"`
	DemandFactor float64 `json:"demand_factor"`
	DailyProfit  float64 `json:"daily_profit"`
}

// EstimateElasticity derives a price-demand coefficient from observed
// price/demand pairs: the average percent demand change per percent price
// change across consecutive observations. Falls back to the configured
// default when the history is too thin or degenerate. A sane elasticity
// is negative; positive estimates are treated as noise.
func EstimateElasticity(points []PricePoint, fallback float64) float64 {
	if len(points) < 3 {
		return fallback
	}

	var sum float64
	var n int
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		if prev.Price <= 0 || prev.Demand <= 0 {
			continue
		}
		pricePct := (cur.Price - prev.Price) / prev.Price * 100
		demandPct := (cur.Demand - prev.Demand) / prev.Demand * 100
		if math.Abs(pricePct) < 0.5 {
			continue // no meaningful price move to learn from
		}
		sum += demandPct / pricePct
		n++
	}
	if n == 0 {
		return fallback
	}
	e := sum / float64(n)
	if e >= 0 || math.IsNaN(e) || math.IsInf(e, 0) {
		return fallback
	}
	return e
}

// PointsFromHistory converts price-history entries into price points.
// With no sales series to draw on, the demand proxy is observation
// frequency per price bucket: price levels the market keeps revisiting
// see more buying activity than levels it passes through once. Entries
// are bucketed to 50 cents, demand is baseDemand scaled by bucket count,
// and points come back sorted by price for the estimator's consecutive
// walk.
func PointsFromHistory(entries []model.PriceHistoryEntry, baseDemand float64) []PricePoint {
	if baseDemand <= 0 {
		baseDemand = 1
	}
	counts := make(map[float64]int)
	for _, e := range entries {
		if e.Price <= 0 {
			continue
		}
		counts[priceBucket(e.Price)]++
	}

	points := make([]PricePoint, 0, len(counts))
	for price, n := range counts {
		points = append(points, PricePoint{Price: price, Demand: baseDemand * float64(n)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Price < points[j].Price })
	return points
}

func priceBucket(p float64) float64 {
	return math.Round(p*2) / 2
}

// Forecast sweeps prices ±20% around the listing's current price in 5%
// steps and produces the demand/profit curve under the given elasticity.
// Demand change is linearized: factor = 1 + elasticity × pctChange/100,
// floored at zero.
func (s *Strategist) Forecast(listing model.Listing, elasticity float64) []ForecastPoint {
	if listing.CurrentPrice <= 0 {
		return nil
	}
	baseDemand := listing.SalesVelocity
	if baseDemand <= 0 {
		baseDemand = 1
	}

	var curve []ForecastPoint
	for pct := -20.0; pct <= 20.0; pct += 5.0 {
		price := roundCents(listing.CurrentPrice * (1 + pct/100))
		factor := 1 + elasticity*pct/100
		if factor < 0 {
			factor = 0
		}
		profit := (price - listing.CostPrice) * baseDemand * factor
		curve = append(curve, ForecastPoint{
			Price:        price,
			PriceChange:  pct,
			DemandFactor: factor,
			DailyProfit:  profit,
		})
	}
	return curve
}

// BestForecastPoint selects the profit-maximizing point of a curve.
func BestForecastPoint(curve []ForecastPoint) (ForecastPoint, bool) {
	if len(curve) == 0 {
		return ForecastPoint{}, false
	}
	best := curve[0]
	for _, p := range curve[1:] {
		if p.DailyProfit > best.DailyProfit {
			best = p
		}
	}
	return best, true
}
