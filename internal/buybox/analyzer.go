package buybox

import (
	"fmt"
	"sort"
	"time"

	"github.com/skuflow/repricer/internal/intel"
	"github.com/skuflow/repricer/internal/model"
)

// Recommendation actions, in the order the analyzer prefers them.
const (
	ActionLowerPrice       = "lower_price"
	ActionMatchPrice       = "match_price"
	ActionImproveLogistics = "improve_logistics"
	ActionIncreaseStock    = "increase_stock"
	ActionWait             = "wait"
)

// Recommendation is one prioritized suggestion for regaining or defending
// the buy box.
type Recommendation struct {
	Action      string  `json:"action"`
	Urgency     string  `json:"urgency"` // "critical", "high", "medium", "low"
	TargetPrice float64 `json:"target_price,omitempty"`
	Reason      string  `json:"reason"`
}

// Scenario is a price point and the probability it buys.
type Scenario struct {
	TargetProbability float64 `json:"target_probability"`
	Price             float64 `json:"price"`
	Achievable        bool    `json:"achievable"`
}

// Status is the full buy-box standing for an ASIN.
type Status struct {
	ASIN            string           `json:"asin"`
	HolderSellerID  string           `json:"holder_seller_id"`
	HolderPrice     float64          `json:"holder_price"`
	WeHoldBuyBox    bool             `json:"we_hold_buybox"`
	OurRank         int              `json:"our_rank"` // 1-based by landed price
	PriceGap        float64          `json:"price_gap"`
	PriceGapPct     float64          `json:"price_gap_pct"`
	WinProbability  float64          `json:"win_probability"`
	Scenarios       []Scenario       `json:"scenarios"`
	Recommendations []Recommendation `json:"recommendations"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
}

// Analyzer reads competitor records and the buy-box ledger from the store.
type Analyzer struct {
	store       *intel.Store
	ourSellerID string
}

// NewAnalyzer creates a buy-box analyzer for our seller identity.
func NewAnalyzer(store *intel.Store, ourSellerID string) *Analyzer {
	return &Analyzer{store: store, ourSellerID: ourSellerID}
}

// AnalyzeStatus computes our standing for an ASIN given our current offer.
func (a *Analyzer) AnalyzeStatus(asin string, our OurOffer, now time.Time) Status {
	records := a.store.ActiveCompetitors(asin)
	return AnalyzeStatus(asin, a.ourSellerID, our, records, now)
}

// AnalyzeStatus is the pure analysis over a competitor field.
func AnalyzeStatus(asin, ourSellerID string, our OurOffer, records []model.CompetitorRecord, now time.Time) Status {
	st := Status{ASIN: asin, AnalyzedAt: now}

	competitors := make([]model.Offer, 0, len(records))
	for _, r := range records {
		if r.SellerID == ourSellerID {
			continue
		}
		o := model.Offer{
			SellerID:      r.SellerID,
			SellerName:    r.SellerName,
			Price:         r.CurrentPrice,
			ShippingCost:  r.ShippingCost,
			Fulfillment:   r.Fulfillment,
			Prime:         r.Prime,
			HasBuyBox:     r.HasBuyBox,
			InStock:       r.InStock,
			SellerRating:  r.SellerRating,
			FeedbackCount: r.FeedbackCount,
		}
		competitors = append(competitors, o)
		if r.HasBuyBox {
			st.HolderSellerID = r.SellerID
			st.HolderPrice = r.CurrentPrice
		}
	}
	if st.HolderSellerID == "" {
		// Nobody else holds it; treat it as ours when we are in stock.
		st.WeHoldBuyBox = our.StockLevel > 0
		st.HolderSellerID = ourSellerID
		st.HolderPrice = our.Price
	}

	st.OurRank = rankByLandedPrice(our, competitors)
	if st.HolderPrice > 0 && !st.WeHoldBuyBox {
		st.PriceGap = our.Price - st.HolderPrice
		st.PriceGapPct = st.PriceGap / st.HolderPrice * 100
	}

	st.WinProbability = WinProbability(our, competitors)

	for _, target := range []float64{85, 90, 95} {
		price, ok := PriceForProbability(our, competitors, target)
		st.Scenarios = append(st.Scenarios, Scenario{
			TargetProbability: target,
			Price:             price,
			Achievable:        ok,
		})
	}

	st.Recommendations = recommend(st, our, competitors)
	return st
}

func rankByLandedPrice(our OurOffer, competitors []model.Offer) int {
	landed := make([]float64, 0, len(competitors)+1)
	for _, c := range competitors {
		if c.InStock {
			landed = append(landed, c.LandedPrice())
		}
	}
	sort.Float64s(landed)
	rank := 1
	for _, p := range landed {
		if p < our.Price {
			rank++
		}
	}
	return rank
}

// recommend picks prioritized actions from fixed thresholds: gap over 5%
// is a high-urgency price cut, over 2% a medium one; a fulfillment gap
// suggests logistics work; zero stock is critical regardless of price.
func recommend(st Status, our OurOffer, competitors []model.Offer) []Recommendation {
	var recs []Recommendation

	if our.StockLevel <= 0 {
		recs = append(recs, Recommendation{
			Action:  ActionIncreaseStock,
			Urgency: "critical",
			Reason:  "out of stock listings cannot hold the buy box",
		})
	}

	holderPlatform := false
	for _, c := range competitors {
		if c.HasBuyBox && c.Fulfillment == model.FulfillmentPlatform {
			holderPlatform = true
		}
	}

	switch {
	case st.PriceGapPct > 5:
		recs = append(recs, Recommendation{
			Action:      ActionLowerPrice,
			Urgency:     "high",
			TargetPrice: st.HolderPrice,
			Reason:      fmt.Sprintf("our price is %.1f%% above the buy-box price", st.PriceGapPct),
		})
	case st.PriceGapPct > 2:
		recs = append(recs, Recommendation{
			Action:      ActionMatchPrice,
			Urgency:     "medium",
			TargetPrice: st.HolderPrice,
			Reason:      fmt.Sprintf("our price is %.1f%% above the buy-box price", st.PriceGapPct),
		})
	}

	if holderPlatform && our.Fulfillment != model.FulfillmentPlatform {
		recs = append(recs, Recommendation{
			Action:  ActionImproveLogistics,
			Urgency: "medium",
			Reason:  "buy-box holder ships platform-fulfilled with prime; we do not",
		})
	}

	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Action:  ActionWait,
			Urgency: "low",
			Reason:  "position is competitive, no action needed",
		})
	}

	return recs
}
