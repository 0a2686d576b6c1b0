package engine

import (
	"context"

	"github.com/skuflow/repricer/internal/model"
)

// ListingProvider is the inventory collaborator: it resolves a rule's
// target selector into listing facts and re-reads single listings before
// a price change is validated.
type ListingProvider interface {
	// ListingsFor returns the listings matching a target selector.
	ListingsFor(ctx context.Context, sel model.TargetSelector) ([]model.Listing, error)
	// Refresh re-reads one listing's current facts.
	Refresh(ctx context.Context, listingID string) (model.Listing, error)
}

// PriceApplier pushes an approved price change downstream. Failures
// surface as non-fatal execution errors, never as engine faults.
type PriceApplier interface {
	ApplyPrice(ctx context.Context, listingID string, newPrice float64, ruleID, reason string) error
}
