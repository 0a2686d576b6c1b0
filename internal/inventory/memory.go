// Package inventory provides an in-memory listing catalog implementing
// the engine's provider and applier ports. It backs the demo binary and
// the engine tests; production deployments replace it with their own
// marketplace integration.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/skuflow/repricer/internal/engine"
	"github.com/skuflow/repricer/internal/model"
)

// PriceChange records one applied change, newest last.
type PriceChange struct {
	ListingID string
	OldPrice  float64
	NewPrice  float64
	RuleID    string
	Reason    string
	AppliedAt time.Time
}

// MemoryInventory holds listings in a map and applies price changes by
// mutating them in place.
type MemoryInventory struct {
	mu       sync.RWMutex
	listings map[string]*model.Listing
	applied  []PriceChange

	// ApplyErr, when set, makes every ApplyPrice call fail. Used by
	// tests exercising the apply-failure path.
	ApplyErr error
}

// NewMemoryInventory creates an empty catalog.
func NewMemoryInventory() *MemoryInventory {
	return &MemoryInventory{listings: make(map[string]*model.Listing)}
}

// Put inserts or replaces a listing.
func (m *MemoryInventory) Put(l model.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := l
	m.listings[l.ID] = &cp
}

// ListingsFor implements engine.ListingProvider.
func (m *MemoryInventory) ListingsFor(_ context.Context, sel model.TargetSelector) ([]model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Listing
	for _, l := range m.listings {
		if matches(sel, *l) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Refresh implements engine.ListingProvider.
func (m *MemoryInventory) Refresh(_ context.Context, listingID string) (model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[listingID]
	if !ok {
		return model.Listing{}, fmt.Errorf("listing %s not found", listingID)
	}
	return *l, nil
}

// ApplyPrice implements engine.PriceApplier.
func (m *MemoryInventory) ApplyPrice(_ context.Context, listingID string, newPrice float64, ruleID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ApplyErr != nil {
		return m.ApplyErr
	}
	l, ok := m.listings[listingID]
	if !ok {
		return fmt.Errorf("listing %s not found", listingID)
	}
	m.applied = append(m.applied, PriceChange{
		ListingID: listingID,
		OldPrice:  l.CurrentPrice,
		NewPrice:  newPrice,
		RuleID:    ruleID,
		Reason:    reason,
		AppliedAt: time.Now(),
	})
	l.CurrentPrice = newPrice
	return nil
}

// Applied returns a copy of the change log.
func (m *MemoryInventory) Applied() []PriceChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PriceChange, len(m.applied))
	copy(out, m.applied)
	return out
}

func matches(sel model.TargetSelector, l model.Listing) bool {
	for _, ex := range sel.ExcludedASINs {
		if ex == l.ASIN {
			return false
		}
	}
	if len(sel.ASINs) > 0 && !contains(sel.ASINs, l.ASIN) {
		return false
	}
	if len(sel.Categories) > 0 && !contains(sel.Categories, l.Category) {
		return false
	}
	if sel.MinPrice > 0 && l.CurrentPrice < sel.MinPrice {
		return false
	}
	if sel.MaxPrice > 0 && l.CurrentPrice > sel.MaxPrice {
		return false
	}
	if sel.MinMarginPct > 0 && l.MarginPct() < sel.MinMarginPct {
		return false
	}
	if sel.MaxMarginPct > 0 && l.MarginPct() > sel.MaxMarginPct {
		return false
	}
	return true
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// DefaultIdentity is the demo seller profile.
func DefaultIdentity() engine.Identity {
	return engine.Identity{
		SellerID:      "our-seller",
		Fulfillment:   model.FulfillmentMerchant,
		Prime:         false,
		SellerRating:  4.6,
		FeedbackCount: 820,
	}
}
