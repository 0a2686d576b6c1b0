// Package monitor drives competitor surveillance: it polls the offer
// source for records that are due, feeds the results into the
// intelligence store, and raises engine events for price moves and
// buy-box changes.
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/skuflow/repricer/internal/alert"
	"github.com/skuflow/repricer/internal/intel"
	"github.com/skuflow/repricer/internal/model"
	"github.com/skuflow/repricer/internal/source"
)

// Notifier receives market events detected during a monitoring pass.
// The orchestrator implements this to fan events out to rules.
type Notifier interface {
	OnCompetitorPriceChange(ctx context.Context, asin, sellerID string, oldPrice, newPrice float64) []model.Session
	OnBuyBoxLost(ctx context.Context, asin, previousWinner, newWinner string, newPrice float64) []model.Session
	OnBuyBoxWon(ctx context.Context, asin, previousHolder string)
}

// Options tune one monitor.
type Options struct {
	BatchSize int           // max records considered per pass
	CallDelay time.Duration // pause between offer-source calls
	OurSeller string        // our own seller ID, for buy-box loss detection
}

// Monitor owns the polling loop. Passes are single-flight: a pass that
// fires while the previous one is still running is dropped.
type Monitor struct {
	src      source.OfferSource
	store    *intel.Store
	budget   *CallBudget
	alerts   *alert.Dispatcher
	notifier Notifier
	opts     Options
	log      zerolog.Logger

	inPass atomic.Bool

	// PassesDropped counts passes skipped due to an in-flight pass.
	PassesDropped atomic.Int64
}

// New creates a monitor. notifier may be nil; events are then only
// alerted, not routed to rules.
func New(src source.OfferSource, store *intel.Store, budget *CallBudget, alerts *alert.Dispatcher, notifier Notifier, opts Options, log zerolog.Logger) *Monitor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	return &Monitor{
		src:      src,
		store:    store,
		budget:   budget,
		alerts:   alerts,
		notifier: notifier,
		opts:     opts,
		log:      log.With().Str("component", "monitor").Logger(),
	}
}

// RunPass checks every due record, one source call per ASIN. Records for
// the same ASIN share a scrape. The pass stops early when the context is
// cancelled or the call budget runs out.
func (m *Monitor) RunPass(ctx context.Context) {
	if !m.inPass.CompareAndSwap(false, true) {
		m.PassesDropped.Add(1)
		m.log.Warn().Msg("monitoring pass still in flight, dropping")
		return
	}
	defer m.inPass.Store(false)

	now := time.Now()
	due := m.store.DueRecords(now, m.opts.BatchSize)
	if len(due) == 0 {
		return
	}

	checked := 0
	for _, asin := range dueASINs(due) {
		if ctx.Err() != nil {
			break
		}
		if m.budget != nil && !m.budget.Spend() {
			m.log.Warn().Int("checked", checked).Msg("call budget exhausted, deferring remaining records")
			break
		}
		m.checkASIN(ctx, asin)
		checked++
		if m.opts.CallDelay > 0 {
			select {
			case <-time.After(m.opts.CallDelay):
			case <-ctx.Done():
			}
		}
	}
	m.log.Debug().
		Int("due", len(due)).
		Int("asins_checked", checked).
		Dur("elapsed", time.Since(now)).
		Msg("monitoring pass complete")
}

// checkASIN scrapes one ASIN, ingests the result, and raises the events
// the diff implies.
func (m *Monitor) checkASIN(ctx context.Context, asin string) {
	before := m.store.Records(asin)
	prevPrices := make(map[string]float64, len(before))
	prevHolder := ""
	for _, r := range before {
		prevPrices[r.SellerID] = r.CurrentPrice
		if r.HasBuyBox {
			prevHolder = r.SellerID
		}
	}

	res, err := m.src.FetchOffers(ctx, asin)
	if err != nil {
		m.store.MarkError(asin, time.Now())
		m.log.Warn().Err(err).Str("asin", asin).Msg("offer fetch failed")
		return
	}

	alerts := m.store.Ingest(*res, time.Now())
	m.alerts.Dispatch(alerts...)

	if m.notifier == nil {
		return
	}
	m.notifyPriceChanges(ctx, asin, prevPrices, res.Offers)
	m.notifyBuyBoxChange(ctx, asin, prevHolder, res.Offers)
}

func (m *Monitor) notifyPriceChanges(ctx context.Context, asin string, prev map[string]float64, offers []model.Offer) {
	for _, o := range offers {
		old, known := prev[o.SellerID]
		if !known || old == o.Price {
			continue
		}
		m.notifier.OnCompetitorPriceChange(ctx, asin, o.SellerID, old, o.Price)
	}
}

// notifyBuyBoxChange fires when the buy box moved between us and a rival,
// in either direction. Rival-to-rival handoffs surface through
// price-change events instead.
func (m *Monitor) notifyBuyBoxChange(ctx context.Context, asin, prevHolder string, offers []model.Offer) {
	if m.opts.OurSeller == "" {
		return
	}
	newHolder := ""
	newPrice := 0.0
	for _, o := range offers {
		if o.HasBuyBox {
			newHolder = o.SellerID
			newPrice = o.Price
			break
		}
	}
	if newHolder == "" || newHolder == prevHolder {
		return
	}
	switch {
	case newHolder == m.opts.OurSeller:
		m.notifier.OnBuyBoxWon(ctx, asin, prevHolder)
	case prevHolder == m.opts.OurSeller:
		m.notifier.OnBuyBoxLost(ctx, asin, prevHolder, newHolder, newPrice)
	}
}

// dueASINs collapses due records to their distinct ASINs, preserving the
// store's urgency ordering.
func dueASINs(due []model.CompetitorRecord) []string {
	seen := make(map[string]bool, len(due))
	out := make([]string, 0, len(due))
	for _, r := range due {
		if !seen[r.ASIN] {
			seen[r.ASIN] = true
			out = append(out, r.ASIN)
		}
	}
	return out
}
