package intel

import (
	"sort"
	"time"

	"github.com/skuflow/repricer/internal/model"
)

// snapshotFromOffers summarizes a set of offers into a competitive
// snapshot: price spread, buy-box holder and fulfillment mix. Out-of-stock
// offers are excluded from the price statistics.
func snapshotFromOffers(asin string, offers []model.Offer, now time.Time) model.CompetitiveSnapshot {
	snap := model.CompetitiveSnapshot{
		ASIN:       asin,
		CapturedAt: now,
	}

	var prices []float64
	for _, o := range offers {
		if !o.InStock {
			continue
		}
		snap.InStockOffers++
		prices = append(prices, o.Price)
		if o.Fulfillment == model.FulfillmentPlatform {
			snap.PlatformOffers++
		}
		if o.Prime {
			snap.PrimeOffers++
		}
		if o.HasBuyBox {
			snap.BuyBoxPrice = o.Price
			snap.BuyBoxSellerID = o.SellerID
		}
	}
	snap.TotalOffers = len(prices)
	if len(prices) == 0 {
		return snap
	}

	sort.Float64s(prices)
	snap.MinPrice = prices[0]
	snap.MaxPrice = prices[len(prices)-1]

	var sum float64
	for _, p := range prices {
		sum += p
	}
	snap.AvgPrice = sum / float64(len(prices))
	snap.MedianPrice = median(prices)

	return snap
}

// SnapshotFromOffers is the exported form used when a snapshot must be
// derived straight from a scrape result, before ingestion.
func SnapshotFromOffers(asin string, offers []model.Offer, now time.Time) model.CompetitiveSnapshot {
	return snapshotFromOffers(asin, offers, now)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
