package source

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/skuflow/repricer/internal/model"
)

// MockSource serves deterministic offers without network access. Offers
// can be pinned per ASIN for tests; unpinned ASINs get a synthetic field
// seeded from the ASIN so repeated fetches are stable.
type MockSource struct {
	mu      sync.RWMutex
	offers  map[string][]model.Offer
	failing map[string]error
}

// NewMockSource creates an empty mock source.
func NewMockSource() *MockSource {
	return &MockSource{
		offers:  make(map[string][]model.Offer),
		failing: make(map[string]error),
	}
}

// Available implements OfferSource.
func (m *MockSource) Available() bool { return true }

// SetOffers pins the offer set returned for an ASIN.
func (m *MockSource) SetOffers(asin string, offers []model.Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[asin] = offers
	delete(m.failing, asin)
}

// FailWith makes fetches for the ASIN return the given error.
func (m *MockSource) FailWith(asin string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[asin] = err
}

// FetchOffers implements OfferSource.
func (m *MockSource) FetchOffers(_ context.Context, asin string) (*model.ScrapeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.failing[asin]; ok {
		return nil, err
	}

	offers, ok := m.offers[asin]
	if !ok {
		offers = syntheticOffers(asin)
	}

	out := make([]model.Offer, len(offers))
	copy(out, offers)
	return &model.ScrapeResult{
		ASIN:   asin,
		Offers: out,
		Metadata: model.ScrapeMetadata{
			ScrapedAt:      time.Now(),
			Source:         "mock",
			ResponseTimeMs: 1,
		},
	}, nil
}

// syntheticOffers builds a stable three-seller field from the ASIN hash.
func syntheticOffers(asin string) []model.Offer {
	h := fnv.New32a()
	h.Write([]byte(asin))
	seed := h.Sum32()

	base := 10 + float64(seed%9000)/100 // $10.00 - $99.99
	offers := make([]model.Offer, 0, 3)
	for i := 0; i < 3; i++ {
		price := base + float64(i)*(1+float64(seed%7)/10)
		offers = append(offers, model.Offer{
			SellerID:      fmt.Sprintf("%s-seller-%d", asin, i+1),
			SellerName:    fmt.Sprintf("Seller %d", i+1),
			Price:         float64(int(price*100)) / 100,
			Fulfillment:   fulfillmentFor(i),
			Prime:         i == 0,
			HasBuyBox:     i == 0,
			InStock:       true,
			SellerRating:  4.0 + float64(i)*0.3,
			FeedbackCount: 100 * (i + 1),
		})
	}
	return offers
}

func fulfillmentFor(i int) model.FulfillmentType {
	if i == 0 {
		return model.FulfillmentPlatform
	}
	return model.FulfillmentMerchant
}
