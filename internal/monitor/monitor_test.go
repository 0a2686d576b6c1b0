package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuflow/repricer/internal/alert"
	"github.com/skuflow/repricer/internal/intel"
	"github.com/skuflow/repricer/internal/model"
	"github.com/skuflow/repricer/internal/source"
)

type notifierCall struct {
	kind     string
	asin     string
	sellerID string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
}

func (f *fakeNotifier) OnCompetitorPriceChange(_ context.Context, asin, sellerID string, _, _ float64) []model.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifierCall{"price_change", asin, sellerID})
	return nil
}

func (f *fakeNotifier) OnBuyBoxLost(_ context.Context, asin, _, newWinner string, _ float64) []model.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifierCall{"buybox_lost", asin, newWinner})
	return nil
}

func (f *fakeNotifier) OnBuyBoxWon(_ context.Context, asin, previousHolder string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifierCall{"buybox_won", asin, previousHolder})
}

func seedStore(store *intel.Store, asin string, at time.Time, offers ...model.Offer) {
	store.Ingest(model.ScrapeResult{ASIN: asin, Offers: offers}, at)
}

func newTestMonitor(src source.OfferSource, store *intel.Store) (*Monitor, *fakeNotifier, *alert.CollectorSink) {
	sink := &alert.CollectorSink{}
	notifier := &fakeNotifier{}
	m := New(src, store, nil, alert.NewDispatcher(alert.SeverityLow, sink), notifier, Options{
		BatchSize: 10,
		OurSeller: "our-seller",
	}, zerolog.Nop())
	return m, notifier, sink
}

func TestRunPassIngestsDueRecords(t *testing.T) {
	store := intel.NewStore(intel.DefaultOptions())
	past := time.Now().Add(-2 * time.Hour)
	seedStore(store, "B0TEST", past, model.Offer{SellerID: "s1", Price: 20.00, InStock: true})

	src := source.NewMockSource()
	src.SetOffers("B0TEST", []model.Offer{{SellerID: "s1", Price: 17.00, InStock: true}})

	m, notifier, sink := newTestMonitor(src, store)
	m.RunPass(context.Background())

	rec, ok := store.Record("B0TEST", "s1")
	require.True(t, ok)
	assert.Equal(t, 17.00, rec.CurrentPrice)

	// The drop is alerted and routed to the notifier.
	dropAlerted := false
	for _, a := range sink.Alerts {
		if a.Type == alert.TypePriceDrop {
			dropAlerted = true
		}
	}
	assert.True(t, dropAlerted)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, notifierCall{"price_change", "B0TEST", "s1"}, notifier.calls[0])
}

func TestRunPassSkipsRecordsNotDue(t *testing.T) {
	store := intel.NewStore(intel.DefaultOptions())
	seedStore(store, "B0TEST", time.Now(), model.Offer{SellerID: "s1", Price: 20.00, InStock: true})

	src := source.NewMockSource()
	src.SetOffers("B0TEST", []model.Offer{{SellerID: "s1", Price: 10.00, InStock: true}})

	m, notifier, _ := newTestMonitor(src, store)
	m.RunPass(context.Background())

	rec, _ := store.Record("B0TEST", "s1")
	assert.Equal(t, 20.00, rec.CurrentPrice, "record checked an hour early must not be scraped")
	assert.Empty(t, notifier.calls)
}

func TestRunPassMarksErrors(t *testing.T) {
	store := intel.NewStore(intel.DefaultOptions())
	past := time.Now().Add(-2 * time.Hour)
	seedStore(store, "B0TEST", past, model.Offer{SellerID: "s1", Price: 20.00, InStock: true})

	src := source.NewMockSource()
	src.FailWith("B0TEST", errors.New("blocked"))

	m, _, _ := newTestMonitor(src, store)
	m.RunPass(context.Background())

	rec, _ := store.Record("B0TEST", "s1")
	assert.Equal(t, 1, rec.ConsecutiveErrors)
	assert.Equal(t, 90, rec.CheckIntervalMin, "failed checks back off the cadence")
}

func TestRunPassDetectsBuyBoxLoss(t *testing.T) {
	store := intel.NewStore(intel.DefaultOptions())
	past := time.Now().Add(-2 * time.Hour)
	// We held the buy box; the store knows our own offer too.
	seedStore(store, "B0TEST", past,
		model.Offer{SellerID: "our-seller", Price: 20.00, InStock: true, HasBuyBox: true},
		model.Offer{SellerID: "rival-1", Price: 21.00, InStock: true},
	)

	src := source.NewMockSource()
	src.SetOffers("B0TEST", []model.Offer{
		{SellerID: "our-seller", Price: 20.00, InStock: true},
		{SellerID: "rival-1", Price: 19.00, InStock: true, HasBuyBox: true},
	})

	m, notifier, _ := newTestMonitor(src, store)
	m.RunPass(context.Background())

	var loss *notifierCall
	for i := range notifier.calls {
		if notifier.calls[i].kind == "buybox_lost" {
			loss = &notifier.calls[i]
		}
	}
	require.NotNil(t, loss, "losing the buy box to a rival must notify")
	assert.Equal(t, "rival-1", loss.sellerID)
}

func TestRunPassDetectsBuyBoxWin(t *testing.T) {
	store := intel.NewStore(intel.DefaultOptions())
	past := time.Now().Add(-2 * time.Hour)
	// A rival held the box; the fresh scrape hands it to us.
	seedStore(store, "B0TEST", past,
		model.Offer{SellerID: "our-seller", Price: 20.00, InStock: true},
		model.Offer{SellerID: "rival-1", Price: 19.00, InStock: true, HasBuyBox: true},
	)

	src := source.NewMockSource()
	src.SetOffers("B0TEST", []model.Offer{
		{SellerID: "our-seller", Price: 20.00, InStock: true, HasBuyBox: true},
		{SellerID: "rival-1", Price: 19.00, InStock: true},
	})

	m, notifier, _ := newTestMonitor(src, store)
	m.RunPass(context.Background())

	var win *notifierCall
	for i := range notifier.calls {
		if notifier.calls[i].kind == "buybox_won" {
			win = &notifier.calls[i]
		}
	}
	require.NotNil(t, win, "taking the buy box from a rival must notify")
	assert.Equal(t, "rival-1", win.sellerID)
}

// blockingSource parks fetches until released, to hold a pass open.
type blockingSource struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingSource) Available() bool { return true }

func (b *blockingSource) FetchOffers(_ context.Context, asin string) (*model.ScrapeResult, error) {
	b.started <- struct{}{}
	<-b.release
	return &model.ScrapeResult{ASIN: asin}, nil
}

func TestRunPassSingleFlight(t *testing.T) {
	store := intel.NewStore(intel.DefaultOptions())
	past := time.Now().Add(-2 * time.Hour)
	seedStore(store, "B0TEST", past, model.Offer{SellerID: "s1", Price: 20.00, InStock: true})

	src := &blockingSource{release: make(chan struct{}), started: make(chan struct{})}
	m, _, _ := newTestMonitor(src, store)

	done := make(chan struct{})
	go func() {
		m.RunPass(context.Background())
		close(done)
	}()
	<-src.started // first pass is now inside the source call

	m.RunPass(context.Background()) // must be dropped, not queued
	assert.Equal(t, int64(1), m.PassesDropped.Load())

	close(src.release)
	<-done
}

func TestCallBudgetStopsPassEarly(t *testing.T) {
	store := intel.NewStore(intel.DefaultOptions())
	past := time.Now().Add(-2 * time.Hour)
	seedStore(store, "B0A", past, model.Offer{SellerID: "s1", Price: 20.00, InStock: true})
	seedStore(store, "B0B", past, model.Offer{SellerID: "s1", Price: 20.00, InStock: true})

	src := source.NewMockSource()
	src.SetOffers("B0A", []model.Offer{{SellerID: "s1", Price: 15.00, InStock: true}})
	src.SetOffers("B0B", []model.Offer{{SellerID: "s1", Price: 15.00, InStock: true}})

	sink := &alert.CollectorSink{}
	budget := NewCallBudget(1, time.Hour)
	m := New(src, store, budget, alert.NewDispatcher(alert.SeverityLow, sink), nil, Options{
		BatchSize: 10,
	}, zerolog.Nop())

	m.RunPass(context.Background())

	recA, _ := store.Record("B0A", "s1")
	recB, _ := store.Record("B0B", "s1")
	updated := 0
	if recA.CurrentPrice == 15.00 {
		updated++
	}
	if recB.CurrentPrice == 15.00 {
		updated++
	}
	assert.Equal(t, 1, updated, "a one-call budget must stop after one ASIN")
	assert.Equal(t, 0, budget.Remaining())
}

func TestCallBudgetRefill(t *testing.T) {
	b := NewCallBudget(2, 10*time.Millisecond)
	assert.True(t, b.Spend())
	assert.True(t, b.Spend())
	assert.False(t, b.Spend())

	time.Sleep(25 * time.Millisecond)
	assert.True(t, b.Spend(), "tokens refill over time")
}
