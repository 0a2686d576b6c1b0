package rule

import (
	"github.com/skuflow/repricer/internal/model"
)

// Applies reports whether a listing falls inside the rule's target
// selector. Exclusions win over inclusions.
func Applies(r *model.Rule, listing model.Listing) bool {
	t := r.Targets

	for _, asin := range t.ExcludedASINs {
		if asin == listing.ASIN {
			return false
		}
	}

	if len(t.ASINs) > 0 && !containsString(t.ASINs, listing.ASIN) {
		return false
	}
	if len(t.Categories) > 0 && !containsString(t.Categories, listing.Category) {
		return false
	}

	if t.MinPrice > 0 && listing.CurrentPrice < t.MinPrice {
		return false
	}
	if t.MaxPrice > 0 && listing.CurrentPrice > t.MaxPrice {
		return false
	}

	margin := listing.MarginPct()
	if t.MinMarginPct > 0 && margin < t.MinMarginPct {
		return false
	}
	if t.MaxMarginPct > 0 && margin > t.MaxMarginPct {
		return false
	}

	return true
}

// AppliesToASIN is the selector check when only the ASIN is known, as in
// event fan-out before listings are resolved.
func AppliesToASIN(r *model.Rule, asin string) bool {
	for _, ex := range r.Targets.ExcludedASINs {
		if ex == asin {
			return false
		}
	}
	if len(r.Targets.ASINs) > 0 && !containsString(r.Targets.ASINs, asin) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
