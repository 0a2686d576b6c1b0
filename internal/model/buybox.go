package model

import "time"

// BuyBoxTransition classifies a buy-box ownership change.
type BuyBoxTransition string

const (
	BuyBoxWon        BuyBoxTransition = "won"
	BuyBoxLost       BuyBoxTransition = "lost"
	BuyBoxMaintained BuyBoxTransition = "maintained"
	BuyBoxRegained   BuyBoxTransition = "regained"
)

// BuyBoxEvent is an immutable record of a buy-box transition for an ASIN.
// Drives alerting and historical pattern mining.
type BuyBoxEvent struct {
	ID        string           `json:"id"`
	ASIN      string           `json:"asin"`
	Timestamp time.Time        `json:"timestamp"`
	Kind      BuyBoxTransition `json:"kind"`

	WinnerSellerID    string          `json:"winner_seller_id"`
	WinnerPrice       float64         `json:"winner_price"`
	WinnerFulfillment FulfillmentType `json:"winner_fulfillment"`
	WinnerPrime       bool            `json:"winner_prime"`

	OurPrice       float64         `json:"our_price"`
	OurFulfillment FulfillmentType `json:"our_fulfillment"`
	OurPrime       bool            `json:"our_prime"`

	PriceGap    float64 `json:"price_gap"`     // winner price minus ours
	PriceGapPct float64 `json:"price_gap_pct"` // gap relative to our price

	// Reason is a loss classification for lost events and a win-strategy
	// classification for won/regained events.
	Reason string `json:"reason,omitempty"`

	DetectionDelayMs  int64 `json:"detection_delay_ms,omitempty"`
	ResponseDelayMs   int64 `json:"response_delay_ms,omitempty"`
	ResponseSucceeded bool  `json:"response_succeeded,omitempty"`
}

// Loss reason and win strategy classifications.
const (
	LossReasonPrice       = "price_disadvantage"
	LossReasonFulfillment = "fulfillment_disadvantage"
	LossReasonStock       = "stock_out"
	LossReasonUnknown     = "unknown"

	WinStrategyPrice     = "price_leadership"
	WinStrategyLogistics = "logistics_advantage"
	WinStrategyHold      = "position_hold"
)
