package buybox

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skuflow/repricer/internal/alert"
	"github.com/skuflow/repricer/internal/model"
)

// LossDetails carries what is known about a buy-box loss at record time.
type LossDetails struct {
	WinnerSellerID    string
	WinnerPrice       float64
	WinnerFulfillment model.FulfillmentType
	WinnerPrime       bool
	Our               OurOffer
	DetectionDelayMs  int64
}

// RecordLoss appends an immutable lost event to the ledger, classifies
// the loss, and returns the alert to dispatch. Losses always alert at
// high severity.
func (a *Analyzer) RecordLoss(asin string, d LossDetails, now time.Time) (model.BuyBoxEvent, alert.Alert) {
	ev := model.BuyBoxEvent{
		ID:                uuid.NewString(),
		ASIN:              asin,
		Timestamp:         now,
		Kind:              model.BuyBoxLost,
		WinnerSellerID:    d.WinnerSellerID,
		WinnerPrice:       d.WinnerPrice,
		WinnerFulfillment: d.WinnerFulfillment,
		WinnerPrime:       d.WinnerPrime,
		OurPrice:          d.Our.Price,
		OurFulfillment:    d.Our.Fulfillment,
		OurPrime:          d.Our.Prime,
		DetectionDelayMs:  d.DetectionDelayMs,
	}
	ev.PriceGap = d.WinnerPrice - d.Our.Price
	if d.Our.Price > 0 {
		ev.PriceGapPct = ev.PriceGap / d.Our.Price * 100
	}
	ev.Reason = classifyLoss(d)

	a.store.AppendBuyBoxEvent(ev)

	return ev, alert.Alert{
		Type:     alert.TypeBuyBoxLost,
		Severity: alert.SeverityHigh,
		ASIN:     asin,
		Message: fmt.Sprintf("buy box lost to %s at $%.2f (ours $%.2f, %s)",
			d.WinnerSellerID, d.WinnerPrice, d.Our.Price, ev.Reason),
		Data: map[string]string{
			"winner": d.WinnerSellerID,
			"reason": ev.Reason,
		},
		Timestamp: now,
	}
}

// WinDetails carries what is known about a buy-box win at record time.
type WinDetails struct {
	Regained        bool
	Our             OurOffer
	FieldLowest     float64 // lowest competitor price at win time
	ResponseDelayMs int64
}

// RecordWin appends an immutable won or regained event with a win-strategy
// classification, and returns the alert to dispatch.
func (a *Analyzer) RecordWin(asin string, d WinDetails, now time.Time) (model.BuyBoxEvent, alert.Alert) {
	kind := model.BuyBoxWon
	if d.Regained {
		kind = model.BuyBoxRegained
	}
	ev := model.BuyBoxEvent{
		ID:                uuid.NewString(),
		ASIN:              asin,
		Timestamp:         now,
		Kind:              kind,
		WinnerSellerID:    a.ourSellerID,
		WinnerPrice:       d.Our.Price,
		WinnerFulfillment: d.Our.Fulfillment,
		WinnerPrime:       d.Our.Prime,
		OurPrice:          d.Our.Price,
		OurFulfillment:    d.Our.Fulfillment,
		OurPrime:          d.Our.Prime,
		Reason:            classifyWin(d),
		ResponseDelayMs:   d.ResponseDelayMs,
		ResponseSucceeded: true,
	}
	if d.FieldLowest > 0 {
		ev.PriceGap = d.Our.Price - d.FieldLowest
		ev.PriceGapPct = ev.PriceGap / d.FieldLowest * 100
	}

	a.store.AppendBuyBoxEvent(ev)

	return ev, alert.Alert{
		Type:     alert.TypeBuyBoxWon,
		Severity: alert.SeverityLow,
		ASIN:     asin,
		Message:  fmt.Sprintf("buy box %s at $%.2f (%s)", ev.Kind, d.Our.Price, ev.Reason),
		Data: map[string]string{
			"strategy": ev.Reason,
		},
		Timestamp: now,
	}
}

func classifyLoss(d LossDetails) string {
	switch {
	case d.Our.StockLevel <= 0:
		return model.LossReasonStock
	case d.Our.Price > d.WinnerPrice:
		return model.LossReasonPrice
	case d.WinnerFulfillment == model.FulfillmentPlatform && d.Our.Fulfillment != model.FulfillmentPlatform:
		return model.LossReasonFulfillment
	default:
		return model.LossReasonUnknown
	}
}

func classifyWin(d WinDetails) string {
	switch {
	case d.FieldLowest > 0 && d.Our.Price <= d.FieldLowest:
		return model.WinStrategyPrice
	case d.Our.Fulfillment == model.FulfillmentPlatform:
		return model.WinStrategyLogistics
	default:
		return model.WinStrategyHold
	}
}
