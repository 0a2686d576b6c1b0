package model

import "time"

// FulfillmentType says who ships the order. Platform fulfillment carries
// the prime badge and a buy-box advantage.
type FulfillmentType string

const (
	FulfillmentMerchant FulfillmentType = "merchant"
	FulfillmentPlatform FulfillmentType = "platform"
)

// RecordStatus is the lifecycle state of a competitor record. Records are
// never deleted; sellers that disappear go inactive or out_of_stock.
type RecordStatus string

const (
	RecordActive     RecordStatus = "active"
	RecordInactive   RecordStatus = "inactive"
	RecordOutOfStock RecordStatus = "out_of_stock"
)

// CompetitorRecord tracks one (ASIN, seller) pair across monitoring passes.
type CompetitorRecord struct {
	ASIN       string `json:"asin"`
	SellerID   string `json:"seller_id"`
	SellerName string `json:"seller_name"`

	CurrentPrice  float64         `json:"current_price"`
	PreviousPrice float64         `json:"previous_price"`
	LowestPrice   float64         `json:"lowest_price"`
	HighestPrice  float64         `json:"highest_price"`
	ShippingCost  float64         `json:"shipping_cost"`
	Fulfillment   FulfillmentType `json:"fulfillment"`
	Prime         bool            `json:"prime"`
	SellerRating  float64         `json:"seller_rating"` // 0-5
	FeedbackCount int             `json:"feedback_count"`
	HasBuyBox     bool            `json:"has_buybox"`
	InStock       bool            `json:"in_stock"`

	Status          RecordStatus `json:"status"`
	OutOfStockCount int          `json:"out_of_stock_count"`

	// Monitoring cadence. CheckIntervalMin backs off multiplicatively on
	// repeated errors, bounded by the monitor's configured cap.
	CheckIntervalMin  int       `json:"check_interval_min"`
	NextCheckAt       time.Time `json:"next_check_at"`
	ConsecutiveErrors int       `json:"consecutive_errors"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key returns the ledger key for the record.
func (r *CompetitorRecord) Key() string {
	return r.ASIN + "|" + r.SellerID
}

// Offer is one seller's offer for an ASIN as returned by the offer source.
type Offer struct {
	SellerID      string          `json:"seller_id"`
	SellerName    string          `json:"seller_name"`
	Price         float64         `json:"price"`
	ShippingCost  float64         `json:"shipping_cost"`
	Fulfillment   FulfillmentType `json:"fulfillment"`
	Prime         bool            `json:"prime"`
	HasBuyBox     bool            `json:"has_buybox"`
	InStock       bool            `json:"in_stock"`
	SellerRating  float64         `json:"seller_rating"`
	FeedbackCount int             `json:"feedback_count"`
}

// LandedPrice is item price plus shipping, the figure buyers compare.
func (o Offer) LandedPrice() float64 {
	return o.Price + o.ShippingCost
}

// ScrapeMetadata describes one offer-source call.
type ScrapeMetadata struct {
	ScrapedAt      time.Time `json:"scraped_at"`
	Source         string    `json:"source"`
	ResponseTimeMs int64     `json:"response_time_ms"`
}

// ScrapeResult is the set of offers observed for one ASIN in one pass.
type ScrapeResult struct {
	ASIN     string         `json:"asin"`
	Offers   []Offer        `json:"offers"`
	Metadata ScrapeMetadata `json:"metadata"`
}

// ChangeCause classifies why a price-history entry was recorded.
type ChangeCause string

const (
	CausePriceDrop     ChangeCause = "price_drop"
	CausePriceIncrease ChangeCause = "price_increase"
	CauseNewCompetitor ChangeCause = "new_competitor"
	CauseRestock       ChangeCause = "restock"
)

// PriceHistoryEntry is an immutable observation of one seller's price at
// one instant. Never mutated after insertion; read-side analytics only.
type PriceHistoryEntry struct {
	ASIN          string              `json:"asin"`
	SellerID      string              `json:"seller_id"`
	Timestamp     time.Time           `json:"timestamp"`
	Price         float64             `json:"price"`
	PreviousPrice float64             `json:"previous_price"`
	Change        float64             `json:"change"`
	ChangePct     float64             `json:"change_pct"`
	HadBuyBox     bool                `json:"had_buybox"`
	Snapshot      CompetitiveSnapshot `json:"snapshot"`
	Cause         ChangeCause         `json:"cause"`
}

// CompetitiveSnapshot summarizes the offer landscape for an ASIN at a
// point in time.
type CompetitiveSnapshot struct {
	ASIN            string    `json:"asin"`
	TotalOffers     int       `json:"total_offers"`
	MinPrice        float64   `json:"min_price"`
	MaxPrice        float64   `json:"max_price"`
	AvgPrice        float64   `json:"avg_price"`
	MedianPrice     float64   `json:"median_price"`
	BuyBoxPrice     float64   `json:"buybox_price"`
	BuyBoxSellerID  string    `json:"buybox_seller_id"`
	PlatformOffers  int       `json:"platform_offers"`
	PrimeOffers     int       `json:"prime_offers"`
	InStockOffers   int       `json:"in_stock_offers"`
	CapturedAt      time.Time `json:"captured_at"`
}
