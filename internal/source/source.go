// Package source defines the offer-source port: the injected collaborator
// that fetches live competitor offers for an ASIN. The engine never
// fetches data itself; it consumes structured scrape results from here.
package source

import (
	"context"

	"github.com/skuflow/repricer/internal/model"
)

// OfferSource returns the current offer set for an ASIN. Implementations
// must be safe for sequential use from the monitoring loop; the loop
// handles pacing between calls.
type OfferSource interface {
	// FetchOffers returns the offers observed for the ASIN right now.
	FetchOffers(ctx context.Context, asin string) (*model.ScrapeResult, error)
	// Available reports whether the source is configured and usable.
	Available() bool
}
