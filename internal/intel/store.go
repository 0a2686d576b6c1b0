// Package intel is the competitive intelligence store: competitor records,
// the append-only price-history ledger and the buy-box event ledger, plus
// the derived competitive snapshots the rest of the engine reads. Pure
// data and derived metrics; no network I/O happens here.
package intel

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/skuflow/repricer/internal/alert"
	"github.com/skuflow/repricer/internal/model"
)

// Options tune reconciliation and cadence behavior.
type Options struct {
	PriceChangeThreshold float64 // minimum absolute delta recorded as history
	HighSeverityPct      float64
	MediumSeverityPct    float64
	BaseCheckIntervalMin int
	MaxCheckIntervalMin  int
	BackoffMultiplier    float64
	MaxConsecutiveErrors int // due-queue skip threshold
	TrackNewSellers      bool
}

// DefaultOptions mirror the engine's stock configuration.
func DefaultOptions() Options {
	return Options{
		PriceChangeThreshold: 0.01,
		HighSeverityPct:      10,
		MediumSeverityPct:    5,
		BaseCheckIntervalMin: 60,
		MaxCheckIntervalMin:  480,
		BackoffMultiplier:    1.5,
		MaxConsecutiveErrors: 5,
		TrackNewSellers:      true,
	}
}

// Store holds all competitive intelligence state behind one mutex. Records
// are keyed by (ASIN, seller); ledgers are keyed by ASIN.
type Store struct {
	mu      sync.RWMutex
	opts    Options
	records map[string]*model.CompetitorRecord
	history map[string][]model.PriceHistoryEntry
	events  map[string][]model.BuyBoxEvent
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	if opts.BackoffMultiplier <= 1 {
		opts.BackoffMultiplier = 1.5
	}
	if opts.BaseCheckIntervalMin <= 0 {
		opts.BaseCheckIntervalMin = 60
	}
	if opts.MaxCheckIntervalMin <= 0 {
		opts.MaxCheckIntervalMin = 480
	}
	return &Store{
		opts:    opts,
		records: make(map[string]*model.CompetitorRecord),
		history: make(map[string][]model.PriceHistoryEntry),
		events:  make(map[string][]model.BuyBoxEvent),
	}
}

// Ingest reconciles one scrape result against the existing records for
// the ASIN. Matched records are updated (resetting their error counters),
// unmatched existing records go out of stock, and newly observed sellers
// get fresh records when tracking is enabled. Returns the alerts the pass
// produced.
func (s *Store) Ingest(res model.ScrapeResult, now time.Time) []alert.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	var alerts []alert.Alert
	seen := make(map[string]bool, len(res.Offers))
	snap := snapshotFromOffers(res.ASIN, res.Offers, now)

	for _, offer := range res.Offers {
		seen[offer.SellerID] = true
		key := res.ASIN + "|" + offer.SellerID

		rec, exists := s.records[key]
		if !exists {
			if !s.opts.TrackNewSellers {
				continue
			}
			rec = s.newRecord(res.ASIN, offer, now)
			s.records[key] = rec
			alerts = append(alerts, alert.Alert{
				Type:      alert.TypeNewCompetitor,
				Severity:  alert.SeverityMedium,
				ASIN:      res.ASIN,
				Message:   fmt.Sprintf("new competitor %s at $%.2f", offer.SellerName, offer.Price),
				Data:      map[string]string{"seller_id": offer.SellerID},
				Timestamp: now,
			})
			continue
		}

		if a := s.applyOffer(rec, offer, snap, now); a != nil {
			alerts = append(alerts, *a)
		}
	}

	// Sellers with records but no offer in this pass are out of stock.
	for _, rec := range s.records {
		if rec.ASIN != res.ASIN || seen[rec.SellerID] {
			continue
		}
		if rec.Status != model.RecordOutOfStock {
			rec.Status = model.RecordOutOfStock
			rec.InStock = false
			rec.HasBuyBox = false
			rec.OutOfStockCount++
			rec.UpdatedAt = now
			alerts = append(alerts, alert.Alert{
				Type:      alert.TypeOutOfStock,
				Severity:  alert.SeverityLow,
				ASIN:      rec.ASIN,
				Message:   fmt.Sprintf("competitor %s dropped out of stock", rec.SellerName),
				Data:      map[string]string{"seller_id": rec.SellerID},
				Timestamp: now,
			})
		}
	}

	return alerts
}

func (s *Store) newRecord(asin string, offer model.Offer, now time.Time) *model.CompetitorRecord {
	status := model.RecordActive
	if !offer.InStock {
		status = model.RecordOutOfStock
	}
	return &model.CompetitorRecord{
		ASIN:             asin,
		SellerID:         offer.SellerID,
		SellerName:       offer.SellerName,
		CurrentPrice:     offer.Price,
		PreviousPrice:    offer.Price,
		LowestPrice:      offer.Price,
		HighestPrice:     offer.Price,
		ShippingCost:     offer.ShippingCost,
		Fulfillment:      offer.Fulfillment,
		Prime:            offer.Prime,
		SellerRating:     offer.SellerRating,
		FeedbackCount:    offer.FeedbackCount,
		HasBuyBox:        offer.HasBuyBox,
		InStock:          offer.InStock,
		Status:           status,
		CheckIntervalMin: s.opts.BaseCheckIntervalMin,
		NextCheckAt:      now.Add(time.Duration(s.opts.BaseCheckIntervalMin) * time.Minute),
		FirstSeenAt:      now,
		LastSeenAt:       now,
		UpdatedAt:        now,
	}
}

// applyOffer updates a matched record and, when the price moved past the
// threshold, appends a history entry and builds the corresponding alert.
func (s *Store) applyOffer(rec *model.CompetitorRecord, offer model.Offer, snap model.CompetitiveSnapshot, now time.Time) *alert.Alert {
	oldPrice := rec.CurrentPrice

	rec.SellerName = offer.SellerName
	rec.ShippingCost = offer.ShippingCost
	rec.Fulfillment = offer.Fulfillment
	rec.Prime = offer.Prime
	rec.SellerRating = offer.SellerRating
	rec.FeedbackCount = offer.FeedbackCount
	rec.HasBuyBox = offer.HasBuyBox

	restocked := !rec.InStock && offer.InStock
	rec.InStock = offer.InStock
	if offer.InStock {
		rec.Status = model.RecordActive
	} else if rec.Status != model.RecordOutOfStock {
		rec.Status = model.RecordOutOfStock
		rec.OutOfStockCount++
	}

	rec.ConsecutiveErrors = 0
	rec.CheckIntervalMin = s.opts.BaseCheckIntervalMin
	rec.NextCheckAt = now.Add(time.Duration(rec.CheckIntervalMin) * time.Minute)
	rec.LastSeenAt = now
	rec.UpdatedAt = now

	delta := offer.Price - oldPrice
	if abs(delta) <= s.opts.PriceChangeThreshold {
		if restocked {
			s.appendHistory(rec, offer.Price, oldPrice, snap, model.CauseRestock, now)
		}
		return nil
	}

	rec.PreviousPrice = oldPrice
	rec.CurrentPrice = offer.Price
	if offer.Price < rec.LowestPrice || rec.LowestPrice == 0 {
		rec.LowestPrice = offer.Price
	}
	if offer.Price > rec.HighestPrice {
		rec.HighestPrice = offer.Price
	}

	changePct := 0.0
	if oldPrice > 0 {
		changePct = delta / oldPrice * 100
	}

	cause := model.CausePriceIncrease
	alertType := alert.TypePriceIncrease
	if delta < 0 {
		cause = model.CausePriceDrop
		alertType = alert.TypePriceDrop
	}
	s.appendHistory(rec, offer.Price, oldPrice, snap, cause, now)

	return &alert.Alert{
		Type:     alertType,
		Severity: alert.SeverityForChange(changePct, s.opts.HighSeverityPct, s.opts.MediumSeverityPct),
		ASIN:     rec.ASIN,
		Message: fmt.Sprintf("%s moved from $%.2f to $%.2f (%.1f%%)",
			rec.SellerName, oldPrice, offer.Price, changePct),
		Data: map[string]string{
			"seller_id": rec.SellerID,
			"old_price": fmt.Sprintf("%.2f", oldPrice),
			"new_price": fmt.Sprintf("%.2f", offer.Price),
		},
		Timestamp: now,
	}
}

func (s *Store) appendHistory(rec *model.CompetitorRecord, price, prev float64, snap model.CompetitiveSnapshot, cause model.ChangeCause, now time.Time) {
	changePct := 0.0
	if prev > 0 {
		changePct = (price - prev) / prev * 100
	}
	s.history[rec.ASIN] = append(s.history[rec.ASIN], model.PriceHistoryEntry{
		ASIN:          rec.ASIN,
		SellerID:      rec.SellerID,
		Timestamp:     now,
		Price:         price,
		PreviousPrice: prev,
		Change:        price - prev,
		ChangePct:     changePct,
		HadBuyBox:     rec.HasBuyBox,
		Snapshot:      snap,
		Cause:         cause,
	})
}

// MarkError records an ingestion failure for every record of the ASIN
// that was due, incrementing the error counter and backing off the
// cadence multiplicatively up to the configured cap.
func (s *Store) MarkError(asin string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.ASIN != asin || rec.NextCheckAt.After(now) {
			continue
		}
		rec.ConsecutiveErrors++
		backoff := float64(rec.CheckIntervalMin) * s.opts.BackoffMultiplier
		if backoff > float64(s.opts.MaxCheckIntervalMin) {
			backoff = float64(s.opts.MaxCheckIntervalMin)
		}
		rec.CheckIntervalMin = int(backoff)
		rec.NextCheckAt = now.Add(time.Duration(rec.CheckIntervalMin) * time.Minute)
		rec.UpdatedAt = now
	}
}

// DueRecords returns up to limit records whose next check is due, oldest
// first. Records over the consecutive-error threshold are skipped.
func (s *Store) DueRecords(now time.Time, limit int) []model.CompetitorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []model.CompetitorRecord
	for _, rec := range s.records {
		if rec.NextCheckAt.After(now) {
			continue
		}
		if s.opts.MaxConsecutiveErrors > 0 && rec.ConsecutiveErrors > s.opts.MaxConsecutiveErrors {
			continue
		}
		due = append(due, *rec)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextCheckAt.Before(due[j].NextCheckAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}

// UpsertCompetitor inserts a manually entered competitor record or
// refreshes an existing one from the given offer.
func (s *Store) UpsertCompetitor(asin string, offer model.Offer, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := asin + "|" + offer.SellerID
	if rec, ok := s.records[key]; ok {
		snap := s.snapshotLocked(asin, now)
		s.applyOffer(rec, offer, snap, now)
		return
	}
	s.records[key] = s.newRecord(asin, offer, now)
}

// Record returns a copy of one competitor record.
func (s *Store) Record(asin, sellerID string) (model.CompetitorRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[asin+"|"+sellerID]
	if !ok {
		return model.CompetitorRecord{}, false
	}
	return *rec, true
}

// Records returns copies of all records for an ASIN.
func (s *Store) Records(asin string) []model.CompetitorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.CompetitorRecord
	for _, rec := range s.records {
		if rec.ASIN == asin {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SellerID < out[j].SellerID })
	return out
}

// ActiveCompetitors returns in-stock active records for an ASIN.
func (s *Store) ActiveCompetitors(asin string) []model.CompetitorRecord {
	var out []model.CompetitorRecord
	for _, rec := range s.Records(asin) {
		if rec.Status == model.RecordActive && rec.InStock {
			out = append(out, rec)
		}
	}
	return out
}

// History returns the price-history entries for an ASIN since the given
// time, oldest first.
func (s *Store) History(asin string, since time.Time) []model.PriceHistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PriceHistoryEntry
	for _, e := range s.history[asin] {
		if e.Timestamp.Before(since) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// AppendBuyBoxEvent appends to the buy-box ledger. Events are immutable
// once stored.
func (s *Store) AppendBuyBoxEvent(ev model.BuyBoxEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ASIN] = append(s.events[ev.ASIN], ev)
}

// BuyBoxEvents returns events for an ASIN since the given time, oldest
// first.
func (s *Store) BuyBoxEvents(asin string, since time.Time) []model.BuyBoxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.BuyBoxEvent
	for _, e := range s.events[asin] {
		if e.Timestamp.Before(since) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Snapshot derives the current competitive snapshot for an ASIN from its
// active records.
func (s *Store) Snapshot(asin string) model.CompetitiveSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(asin, time.Now())
}

func (s *Store) snapshotLocked(asin string, now time.Time) model.CompetitiveSnapshot {
	var offers []model.Offer
	for _, rec := range s.records {
		if rec.ASIN != asin || rec.Status != model.RecordActive || !rec.InStock {
			continue
		}
		offers = append(offers, model.Offer{
			SellerID:      rec.SellerID,
			SellerName:    rec.SellerName,
			Price:         rec.CurrentPrice,
			ShippingCost:  rec.ShippingCost,
			Fulfillment:   rec.Fulfillment,
			Prime:         rec.Prime,
			HasBuyBox:     rec.HasBuyBox,
			InStock:       rec.InStock,
			SellerRating:  rec.SellerRating,
			FeedbackCount: rec.FeedbackCount,
		})
	}
	return snapshotFromOffers(asin, offers, now)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
