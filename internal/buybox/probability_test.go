package buybox

import (
	"testing"

	"github.com/skuflow/repricer/internal/model"
)

func field(prices ...float64) []model.Offer {
	offers := make([]model.Offer, 0, len(prices))
	for i, p := range prices {
		offers = append(offers, model.Offer{
			SellerID: "s" + string(rune('a'+i)),
			Price:    p,
			InStock:  true,
		})
	}
	return offers
}

func strongOffer(price float64) OurOffer {
	return OurOffer{
		Price:         price,
		Fulfillment:   model.FulfillmentPlatform,
		Prime:         true,
		SellerRating:  4.9,
		FeedbackCount: 2000,
		StockLevel:    10,
	}
}

func TestWinProbabilityZeroStock(t *testing.T) {
	our := strongOffer(10.00)
	our.StockLevel = 0
	if got := WinProbability(our, field(12, 15)); got != 0 {
		t.Errorf("WinProbability with zero stock = %.1f, want exactly 0", got)
	}
}

// Raising our price against a fixed field must never raise the win
// probability.
func TestWinProbabilityMonotoneInPrice(t *testing.T) {
	competitors := field(20.00, 22.00, 25.00)
	our := strongOffer(0)

	prev := 101.0
	for price := 15.00; price <= 30.00; price += 0.25 {
		our.Price = price
		p := WinProbability(our, competitors)
		if p > prev {
			t.Fatalf("probability increased from %.2f to %.2f when price rose to %.2f", prev, p, price)
		}
		if p < 0 || p > 100 {
			t.Fatalf("probability %.2f outside [0,100] at price %.2f", p, price)
		}
		prev = p
	}
}

func TestWinProbabilityAdjustments(t *testing.T) {
	competitors := field(20.00)

	tests := []struct {
		name string
		our  OurOffer
		want float64
	}{
		{
			name: "strong seller at parity",
			// 50 + 0 price + 15 platform + 12 prime + 20 rating + 10 feedback = 100 (clamped from 107)
			our:  strongOffer(20.00),
			want: 100,
		},
		{
			name: "weak merchant priced above",
			// 50 - 40 price (10% gap saturates) - 15 merchant - 12 no prime - 20 rating - 10 feedback = 0 (clamped)
			our: OurOffer{
				Price: 22.00, Fulfillment: model.FulfillmentMerchant,
				SellerRating: 2.5, FeedbackCount: 5, StockLevel: 1,
			},
			want: 0,
		},
		{
			name: "unknown rating and feedback are neutral",
			// 50 + 0 price - 15 merchant - 12 no prime = 23
			our: OurOffer{Price: 20.00, Fulfillment: model.FulfillmentMerchant, StockLevel: 1},
			want: 23,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WinProbability(tt.our, competitors); got != tt.want {
				t.Errorf("WinProbability() = %.1f, want %.1f", got, tt.want)
			}
		})
	}
}

func TestPriceForProbability(t *testing.T) {
	competitors := field(20.00, 24.00)
	our := strongOffer(0)

	price, ok := PriceForProbability(our, competitors, 90)
	if !ok {
		t.Fatal("90% should be achievable for a strong seller")
	}
	probe := our
	probe.Price = price
	if p := WinProbability(probe, competitors); p < 90 {
		t.Errorf("returned price %.2f only achieves %.1f%%", price, p)
	}
	// The next cent up must fall short, otherwise the search stopped early.
	probe.Price = price + 0.05
	if p := WinProbability(probe, competitors); p >= 90 && price+0.05 < 20.00*1.5 {
		t.Errorf("price %.2f is not the highest achieving 90%% (%.2f also achieves %.1f%%)", price, probe.Price, p)
	}
}

func TestPriceForProbabilityUnreachable(t *testing.T) {
	// A weak merchant cannot reach 95% at any price.
	our := OurOffer{
		Fulfillment: model.FulfillmentMerchant, SellerRating: 2.0,
		FeedbackCount: 3, StockLevel: 1,
	}
	if _, ok := PriceForProbability(our, field(20.00), 95); ok {
		t.Error("95% should be unreachable for a weak merchant")
	}
	if _, ok := PriceForProbability(strongOffer(0), nil, 50); ok {
		t.Error("no competitor field means no reference price")
	}
}

func TestAnalyzeStatusRecommendations(t *testing.T) {
	now := testTime()
	records := []model.CompetitorRecord{
		{
			ASIN: "B0TEST", SellerID: "rival-1", CurrentPrice: 20.00,
			Fulfillment: model.FulfillmentPlatform, Prime: true,
			HasBuyBox: true, InStock: true, Status: model.RecordActive,
		},
	}

	tests := []struct {
		name       string
		our        OurOffer
		wantAction string
	}{
		{
			name:       "large gap demands price cut",
			our:        OurOffer{Price: 21.50, Fulfillment: model.FulfillmentPlatform, Prime: true, StockLevel: 5},
			wantAction: ActionLowerPrice, // 7.5% gap
		},
		{
			name:       "small gap suggests match",
			our:        OurOffer{Price: 20.60, Fulfillment: model.FulfillmentPlatform, Prime: true, StockLevel: 5},
			wantAction: ActionMatchPrice, // 3% gap
		},
		{
			name:       "fulfillment gap suggests logistics",
			our:        OurOffer{Price: 20.00, Fulfillment: model.FulfillmentMerchant, StockLevel: 5},
			wantAction: ActionImproveLogistics,
		},
		{
			name:       "zero stock is critical",
			our:        OurOffer{Price: 20.00, Fulfillment: model.FulfillmentPlatform, Prime: true, StockLevel: 0},
			wantAction: ActionIncreaseStock,
		},
		{
			name:       "competitive position waits",
			our:        OurOffer{Price: 19.80, Fulfillment: model.FulfillmentPlatform, Prime: true, StockLevel: 5},
			wantAction: ActionWait,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := AnalyzeStatus("B0TEST", "our-seller", tt.our, records, now)
			if len(st.Recommendations) == 0 {
				t.Fatal("no recommendations returned")
			}
			if st.Recommendations[0].Action != tt.wantAction {
				t.Errorf("first recommendation = %s, want %s", st.Recommendations[0].Action, tt.wantAction)
			}
			if len(st.Scenarios) != 3 {
				t.Errorf("expected 3 probability scenarios, got %d", len(st.Scenarios))
			}
		})
	}
}

func TestAnalyzeStatusRank(t *testing.T) {
	records := []model.CompetitorRecord{
		{ASIN: "B0TEST", SellerID: "r1", CurrentPrice: 18.00, InStock: true, Status: model.RecordActive},
		{ASIN: "B0TEST", SellerID: "r2", CurrentPrice: 22.00, InStock: true, Status: model.RecordActive},
	}
	our := OurOffer{Price: 20.00, StockLevel: 1}
	st := AnalyzeStatus("B0TEST", "our-seller", our, records, testTime())
	if st.OurRank != 2 {
		t.Errorf("OurRank = %d, want 2 (one cheaper rival)", st.OurRank)
	}
}
