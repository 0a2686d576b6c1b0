// Package buybox estimates buy-box win probability, analyzes current
// buy-box standing, and mines the historical event ledger for patterns.
package buybox

import (
	"github.com/skuflow/repricer/internal/model"
)

// OurOffer describes our own offer attributes for probability estimation.
type OurOffer struct {
	Price         float64
	Fulfillment   model.FulfillmentType
	Prime         bool
	SellerRating  float64
	FeedbackCount int
	StockLevel    int
}

// WinProbability estimates the chance (0-100) of holding the buy box at
// the given price against the competitor field. The model starts at 50
// and applies additive weighted adjustments:
//
//	price position vs lowest eligible competitor  ±40
//	fulfillment and prime advantage               ±27
//	seller rating tier                            ±20
//	feedback count tier                           ±10
//
// Zero stock forces the probability to exactly 0.
func WinProbability(our OurOffer, competitors []model.Offer) float64 {
	if our.StockLevel <= 0 {
		return 0
	}

	score := 50.0
	score += priceAdjustment(our.Price, competitors)
	score += fulfillmentAdjustment(our)
	score += ratingAdjustment(our.SellerRating)
	score += feedbackAdjustment(our.FeedbackCount)

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// priceAdjustment scales with the percent gap to the lowest in-stock
// competitor: 5% cheaper saturates at +40, 5% dearer at -40. Monotonically
// non-increasing in the gap.
func priceAdjustment(ourPrice float64, competitors []model.Offer) float64 {
	lowest := lowestEligiblePrice(competitors)
	if lowest <= 0 || ourPrice <= 0 {
		return 0
	}
	gapPct := (ourPrice - lowest) / lowest * 100
	adj := -gapPct * 8
	if adj > 40 {
		return 40
	}
	if adj < -40 {
		return -40
	}
	return adj
}

func lowestEligiblePrice(competitors []model.Offer) float64 {
	lowest := 0.0
	for _, c := range competitors {
		if !c.InStock || c.Price <= 0 {
			continue
		}
		if lowest == 0 || c.Price < lowest {
			lowest = c.Price
		}
	}
	return lowest
}

func fulfillmentAdjustment(our OurOffer) float64 {
	adj := 0.0
	if our.Fulfillment == model.FulfillmentPlatform {
		adj += 15
	} else {
		adj -= 15
	}
	if our.Prime {
		adj += 12
	} else {
		adj -= 12
	}
	return adj
}

func ratingAdjustment(rating float64) float64 {
	switch {
	case rating >= 4.8:
		return 20
	case rating >= 4.5:
		return 10
	case rating == 0:
		return 0 // unknown rating is neutral
	case rating < 3.0:
		return -20
	case rating < 3.5:
		return -10
	default:
		return 0
	}
}

func feedbackAdjustment(count int) float64 {
	switch {
	case count >= 1000:
		return 10
	case count >= 100:
		return 5
	case count == 0:
		return 0
	case count < 10:
		return -10
	case count < 50:
		return -5
	default:
		return 0
	}
}

// PriceForProbability finds the highest price achieving at least the
// target probability, exploiting that WinProbability is non-increasing in
// price. Returns false when the target is unreachable at any price.
func PriceForProbability(our OurOffer, competitors []model.Offer, target float64) (float64, bool) {
	lowest := lowestEligiblePrice(competitors)
	if lowest <= 0 {
		return 0, false
	}

	lo, hi := lowest*0.5, lowest*1.5
	probe := our
	probe.Price = lo
	if WinProbability(probe, competitors) < target {
		return 0, false
	}

	for i := 0; i < 40; i++ {
		mid := (lo + hi) / 2
		probe.Price = mid
		if WinProbability(probe, competitors) >= target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return roundCents(lo), true
}

func roundCents(p float64) float64 {
	return float64(int(p*100+0.5)) / 100
}
