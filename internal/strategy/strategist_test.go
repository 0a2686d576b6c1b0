package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuflow/repricer/internal/buybox"
	"github.com/skuflow/repricer/internal/config"
	"github.com/skuflow/repricer/internal/market"
	"github.com/skuflow/repricer/internal/model"
)

func testHeuristics() config.Heuristics {
	return config.Defaults().Heuristics
}

func baseRequest() Request {
	return Request{
		Listing: model.Listing{
			ID: "l1", ASIN: "B0TEST",
			CurrentPrice: 22.00, CostPrice: 12.00,
		},
		Snapshot: model.CompetitiveSnapshot{
			ASIN: "B0TEST", TotalOffers: 3,
			MinPrice: 20.00, MaxPrice: 26.00, AvgPrice: 23.00, MedianPrice: 23.00,
		},
		Conditions: market.Conditions{
			CompetitionLevel: market.LevelMedium,
			DemandLevel:      market.LevelMedium,
			Condition:        market.ConditionNormal,
		},
		Our: buybox.OurOffer{
			Fulfillment: model.FulfillmentPlatform, Prime: true,
			SellerRating: 4.9, FeedbackCount: 1500, StockLevel: 10,
		},
		Competitors: []model.Offer{
			{SellerID: "r1", Price: 20.00, InStock: true},
			{SellerID: "r2", Price: 23.00, InStock: true},
			{SellerID: "r3", Price: 26.00, InStock: true},
		},
		Goal: GoalBalanced,
		Risk: RiskModerate,
	}
}

func TestRecommendReturnsRankedCandidates(t *testing.T) {
	s := New(testHeuristics())

	rec, err := s.Recommend(baseRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, rec.Best.Strategy)
	assert.NotEmpty(t, rec.Best.Reasoning)
	assert.Greater(t, rec.Best.Price, 0.0)
	for _, alt := range rec.Alternatives {
		assert.LessOrEqual(t, alt.Score, rec.Best.Score, "alternatives must not outscore the best")
	}
	assert.GreaterOrEqual(t, rec.Best.Score, 0.0)
	assert.LessOrEqual(t, rec.Best.Score, 100.0)
}

func TestRecommendNoSnapshotNoCompetitors(t *testing.T) {
	s := New(testHeuristics())
	req := baseRequest()
	req.Snapshot = model.CompetitiveSnapshot{}
	req.Competitors = nil

	// Margin target still produces a candidate from cost alone.
	rec, err := s.Recommend(req)
	require.NoError(t, err)
	assert.Equal(t, StrategyMarginTarget, rec.Best.Strategy)
	// 12 / (1 - 0.30)
	assert.InDelta(t, 17.14, rec.Best.Price, 0.01)
}

func TestRecommendNoCandidates(t *testing.T) {
	s := New(testHeuristics())
	req := baseRequest()
	req.Snapshot = model.CompetitiveSnapshot{}
	req.Competitors = nil
	req.Listing.CostPrice = 0

	_, err := s.Recommend(req)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestCandidatesClampedToListingBounds(t *testing.T) {
	s := New(testHeuristics())
	req := baseRequest()
	req.Listing.MinPrice = 21.00
	req.Listing.MaxPrice = 24.00

	rec, err := s.Recommend(req)
	require.NoError(t, err)

	for _, c := range append([]Candidate{rec.Best}, rec.Alternatives...) {
		assert.GreaterOrEqual(t, c.Price, 21.00, "%s below floor", c.Strategy)
		assert.LessOrEqual(t, c.Price, 24.00, "%s above ceiling", c.Strategy)
	}
}

func TestPremiumOnlyWhenMarketAdmitsIt(t *testing.T) {
	s := New(testHeuristics())

	hasPremium := func(rec *Recommendation) bool {
		for _, c := range append([]Candidate{rec.Best}, rec.Alternatives...) {
			if c.Strategy == StrategyPremiumPosition {
				return true
			}
		}
		return false
	}

	req := baseRequest()
	req.Conditions.CompetitionLevel = market.LevelLow
	rec, err := s.Recommend(req)
	require.NoError(t, err)
	assert.True(t, hasPremium(rec), "low competition admits premium positioning")

	req = baseRequest()
	req.Conditions.CompetitionLevel = market.LevelHigh
	req.Conditions.DemandLevel = market.LevelLow
	rec, err = s.Recommend(req)
	require.NoError(t, err)
	assert.False(t, hasPremium(rec), "crowded low-demand market forbids premium positioning")
}

func TestUndercutCarriesPriceWarRisk(t *testing.T) {
	s := New(testHeuristics())
	req := baseRequest()
	req.Conditions.CompetitionLevel = market.LevelHigh

	rec, err := s.Recommend(req)
	require.NoError(t, err)

	for _, c := range append([]Candidate{rec.Best}, rec.Alternatives...) {
		if c.Strategy != StrategyAggressiveUndercut {
			continue
		}
		found := false
		for _, r := range c.Risks {
			if r.Kind == "price_war" {
				found = true
				assert.NotEmpty(t, r.Mitigation)
			}
		}
		assert.True(t, found, "undercutting a crowded field must flag price_war")
		return
	}
	t.Fatal("no aggressive_undercut candidate generated")
}

func TestExpectedOutcomes(t *testing.T) {
	s := New(testHeuristics())
	req := baseRequest()

	rec, err := s.Recommend(req)
	require.NoError(t, err)

	changePct := (rec.Best.Price - req.Listing.CurrentPrice) / req.Listing.CurrentPrice * 100
	wantSales := testHeuristics().DefaultElasticity * changePct
	assert.InDelta(t, wantSales, rec.Expected.SalesImpactPct, 0.001)
	assert.InDelta(t, rec.Best.MarginPct-req.Listing.MarginPct(), rec.Expected.MarginImpactPct, 0.001)
	assert.Equal(t, rec.Best.WinProbability, rec.Expected.WinProbability)

	// Revenue and order impacts follow the configured market model.
	h := testHeuristics()
	dailyRevenue := h.BaselineRevenue * 24 * h.BuyBoxShare
	factor := (1 + changePct/100) * (1 + wantSales/100)
	assert.InDelta(t, dailyRevenue*(factor-1), rec.Expected.RevenueImpactPerDay, 0.01)
	assert.InDelta(t, dailyRevenue*wantSales/100/h.AvgOrderValue, rec.Expected.OrdersImpactPerDay, 0.051)
}

func TestOutcomesUseHeuristicParameters(t *testing.T) {
	req := baseRequest()

	small := New(config.Heuristics{
		BuyBoxShare: 0.70, BaselineRevenue: 100, AvgOrderValue: 25, DefaultElasticity: -1.5,
	})
	big := New(config.Heuristics{
		BuyBoxShare: 0.70, BaselineRevenue: 1000, AvgOrderValue: 25, DefaultElasticity: -1.5,
	})

	recSmall, err := small.Recommend(req)
	require.NoError(t, err)
	recBig, err := big.Recommend(req)
	require.NoError(t, err)

	require.NotZero(t, recSmall.Expected.RevenueImpactPerDay)
	assert.InDelta(t, recSmall.Expected.RevenueImpactPerDay*10, recBig.Expected.RevenueImpactPerDay, 0.1,
		"revenue impact scales with the configured baseline revenue")
}

func TestPointsFromHistoryFrequencyProxy(t *testing.T) {
	var entries []model.PriceHistoryEntry
	addEntries := func(price float64, n int) {
		for i := 0; i < n; i++ {
			entries = append(entries, model.PriceHistoryEntry{Price: price})
		}
	}
	addEntries(20.00, 9)
	addEntries(21.00, 6)
	addEntries(22.00, 3)

	points := PointsFromHistory(entries, 1)
	require.Len(t, points, 3)

	// Sorted by price, demand proportional to how often the market sat
	// at each level.
	assert.Equal(t, PricePoint{Price: 20.00, Demand: 9}, points[0])
	assert.Equal(t, PricePoint{Price: 21.00, Demand: 6}, points[1])
	assert.Equal(t, PricePoint{Price: 22.00, Demand: 3}, points[2])

	// Near-identical prices share a bucket.
	bucketed := PointsFromHistory([]model.PriceHistoryEntry{
		{Price: 19.99}, {Price: 20.01}, {Price: 20.20},
	}, 1)
	require.Len(t, bucketed, 1)
	assert.Equal(t, 3.0, bucketed[0].Demand)
}

func TestRecommendEstimatesElasticityFromHistory(t *testing.T) {
	s := New(testHeuristics())
	req := baseRequest()
	for _, lvl := range []struct {
		price float64
		n     int
	}{{20.00, 9}, {21.00, 6}, {22.00, 3}} {
		for i := 0; i < lvl.n; i++ {
			req.History = append(req.History, model.PriceHistoryEntry{Price: lvl.price})
		}
	}

	rec, err := s.Recommend(req)
	require.NoError(t, err)

	wantE := EstimateElasticity(PointsFromHistory(req.History, req.Listing.SalesVelocity), testHeuristics().DefaultElasticity)
	require.NotEqual(t, testHeuristics().DefaultElasticity, wantE, "this history must produce its own estimate")
	require.Less(t, wantE, 0.0)

	changePct := (rec.Best.Price - req.Listing.CurrentPrice) / req.Listing.CurrentPrice * 100
	assert.InDelta(t, wantE*changePct, rec.Expected.SalesImpactPct, 0.001)
}

func TestEstimateElasticity(t *testing.T) {
	fallback := -1.5

	t.Run("too few points falls back", func(t *testing.T) {
		got := EstimateElasticity([]PricePoint{{20, 10}, {22, 9}}, fallback)
		assert.Equal(t, fallback, got)
	})

	t.Run("derives negative elasticity", func(t *testing.T) {
		// Each 10% price rise loses 20% demand: elasticity -2.
		points := []PricePoint{
			{Price: 10.00, Demand: 100},
			{Price: 11.00, Demand: 80},
			{Price: 12.10, Demand: 64},
		}
		got := EstimateElasticity(points, fallback)
		assert.InDelta(t, -2.0, got, 0.001)
	})

	t.Run("positive estimate is noise", func(t *testing.T) {
		points := []PricePoint{
			{Price: 10.00, Demand: 100},
			{Price: 11.00, Demand: 120},
			{Price: 12.00, Demand: 140},
		}
		assert.Equal(t, fallback, EstimateElasticity(points, fallback))
	})

	t.Run("tiny price moves are skipped", func(t *testing.T) {
		points := []PricePoint{
			{Price: 10.00, Demand: 100},
			{Price: 10.01, Demand: 50},
			{Price: 10.02, Demand: 25},
		}
		assert.Equal(t, fallback, EstimateElasticity(points, fallback))
	})
}

func TestForecastCurve(t *testing.T) {
	s := New(testHeuristics())
	listing := model.Listing{CurrentPrice: 20.00, CostPrice: 10.00, SalesVelocity: 5}

	curve := s.Forecast(listing, -1.5)
	require.Len(t, curve, 9, "-20%% to +20%% in 5%% steps")

	assert.Equal(t, 16.00, curve[0].Price)
	assert.Equal(t, 24.00, curve[len(curve)-1].Price)

	// Middle point is the current price with unchanged demand.
	mid := curve[4]
	assert.Equal(t, 20.00, mid.Price)
	assert.Equal(t, 1.0, mid.DemandFactor)
	assert.InDelta(t, 50.0, mid.DailyProfit, 0.001) // (20-10) * 5

	best, ok := BestForecastPoint(curve)
	require.True(t, ok)
	// At elasticity -1.5 the margin gain of a moderate increase beats the
	// demand it sheds: +10% gives (22-10) * 5 * 0.85 = 51, the curve peak.
	assert.Equal(t, 22.00, best.Price)
	assert.InDelta(t, 51.0, best.DailyProfit, 0.001)
}

func TestForecastNoPrice(t *testing.T) {
	s := New(testHeuristics())
	assert.Nil(t, s.Forecast(model.Listing{}, -1.5))
	_, ok := BestForecastPoint(nil)
	assert.False(t, ok)
}
