// Package rule owns rule eligibility, price computation and constraint
// validation. Everything here is a pure function of the rule plus its
// inputs so repeated evaluation with identical inputs yields identical
// results.
package rule

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/skuflow/repricer/internal/model"
)

var (
	// ErrNoAction signals the rule's action intentionally produces no
	// price change (e.g. stop-selling rules).
	ErrNoAction = errors.New("rule action produces no price change")
	// ErrUnknownAction rejects an unrecognized action kind. Treated as a
	// computation failure, never a silent no-op.
	ErrUnknownAction = errors.New("unknown action kind")
	// ErrMissingInputs signals required pricing inputs were absent.
	ErrMissingInputs = errors.New("missing pricing inputs")
)

// IsEligible reports whether the rule may execute at now. Inactive rules,
// rules inside their cooldown, rules in a blackout window, and rules over
// their per-period execution cap are all ineligible.
func IsEligible(r *model.Rule, now time.Time) bool {
	return EligibilityReason(r, now) == ""
}

// EligibilityReason returns an empty string when the rule is eligible, or
// a short skip reason otherwise. Skips are expected states, not errors.
func EligibilityReason(r *model.Rule, now time.Time) string {
	if !r.IsActive || r.Status != model.RuleActive {
		return "inactive"
	}
	if r.Trigger.Cooldown > 0 && !r.LastExecutionTime.IsZero() {
		if now.Sub(r.LastExecutionTime) < r.Trigger.Cooldown {
			return "cooldown"
		}
	}
	if InBlackout(r.Constraints.Blackouts, now) {
		return "blackout"
	}
	if r.Trigger.MaxPerPeriod > 0 && r.Trigger.Period > 0 {
		// ExecutionCount is reset by the orchestrator when the period
		// rolls over; here we only honor the cap.
		if r.ExecutionCount >= r.Trigger.MaxPerPeriod &&
			now.Sub(r.LastExecutionTime) < r.Trigger.Period {
			return "execution_cap"
		}
	}
	return ""
}

// InBlackout reports whether now falls inside any blackout window.
func InBlackout(windows []model.BlackoutWindow, now time.Time) bool {
	for _, w := range windows {
		if !weekdayMatches(w.Days, now.Weekday()) {
			continue
		}
		start, err1 := parseClock(w.Start)
		end, err2 := parseClock(w.End)
		if err1 != nil || err2 != nil {
			continue // malformed window never blocks execution
		}
		minutes := now.Hour()*60 + now.Minute()
		if start <= end {
			if minutes >= start && minutes < end {
				return true
			}
		} else {
			// window wraps midnight
			if minutes >= start || minutes < end {
				return true
			}
		}
	}
	return false
}

func weekdayMatches(days []time.Weekday, day time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ComputePrice dispatches on the rule's action kind and returns the
// candidate price with a reasoning string. The price is rounded to cents.
func ComputePrice(r *model.Rule, currentPrice float64, snap *model.CompetitiveSnapshot, listing model.Listing) (float64, string, error) {
	a := r.Action
	switch a.Kind {
	case model.ActionMatchLowest:
		lowest, err := lowestCompetitorPrice(snap)
		if err != nil {
			return 0, "", err
		}
		return roundCents(lowest), fmt.Sprintf("matched lowest competitor price $%.2f", lowest), nil

	case model.ActionUndercutByAmount:
		lowest, err := lowestCompetitorPrice(snap)
		if err != nil {
			return 0, "", err
		}
		p := roundCents(lowest - a.Amount)
		return p, fmt.Sprintf("undercut lowest competitor $%.2f by $%.2f", lowest, a.Amount), nil

	case model.ActionUndercutByPct:
		lowest, err := lowestCompetitorPrice(snap)
		if err != nil {
			return 0, "", err
		}
		p := roundCents(lowest * (1 - a.Percent/100))
		return p, fmt.Sprintf("undercut lowest competitor $%.2f by %.1f%%", lowest, a.Percent), nil

	case model.ActionIncreaseByAmount:
		if currentPrice <= 0 {
			return 0, "", fmt.Errorf("%w: current price unset", ErrMissingInputs)
		}
		p := roundCents(currentPrice + a.Amount)
		return p, fmt.Sprintf("increased current price $%.2f by $%.2f", currentPrice, a.Amount), nil

	case model.ActionIncreaseByPct:
		if currentPrice <= 0 {
			return 0, "", fmt.Errorf("%w: current price unset", ErrMissingInputs)
		}
		p := roundCents(currentPrice * (1 + a.Percent/100))
		return p, fmt.Sprintf("increased current price $%.2f by %.1f%%", currentPrice, a.Percent), nil

	case model.ActionSetFixed:
		if a.FixedPrice <= 0 {
			return 0, "", fmt.Errorf("%w: fixed price unset", ErrMissingInputs)
		}
		return roundCents(a.FixedPrice), fmt.Sprintf("set fixed price $%.2f", a.FixedPrice), nil

	case model.ActionMaintainMargin:
		if listing.CostPrice <= 0 {
			return 0, "", fmt.Errorf("%w: cost price unset", ErrMissingInputs)
		}
		margin := a.TargetMarginPct / 100
		if margin <= 0 || margin >= 1 {
			return 0, "", fmt.Errorf("%w: target margin %.1f%% out of range", ErrMissingInputs, a.TargetMarginPct)
		}
		p := roundCents(listing.CostPrice / (1 - margin))
		return p, fmt.Sprintf("maintain %.0f%% margin on cost $%.2f", a.TargetMarginPct, listing.CostPrice), nil

	case model.ActionOptimize:
		// Resolved by the strategist, never computed here.
		return 0, "", fmt.Errorf("%w: optimize actions require a strategist decision", ErrMissingInputs)

	case model.ActionNone:
		return 0, "", ErrNoAction

	default:
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}
}

func lowestCompetitorPrice(snap *model.CompetitiveSnapshot) (float64, error) {
	if snap == nil || snap.TotalOffers == 0 || snap.MinPrice <= 0 {
		return 0, fmt.Errorf("%w: no competitive snapshot", ErrMissingInputs)
	}
	return snap.MinPrice, nil
}

func roundCents(p float64) float64 {
	return math.Round(p*100) / 100
}

// ValidateChange checks a candidate price against the rule's constraint
// set and returns the list of violated constraints. An empty list means
// the change is acceptable. Increase and decrease step limits are
// evaluated independently.
func ValidateChange(r *model.Rule, currentPrice, newPrice float64) []string {
	c := r.Constraints
	var violations []string

	if newPrice <= 0 {
		violations = append(violations, "non_positive_price")
	}
	if c.MinPrice > 0 && newPrice < c.MinPrice {
		violations = append(violations, fmt.Sprintf("below_min_price:%.2f", c.MinPrice))
	}
	if c.MaxPrice > 0 && newPrice > c.MaxPrice {
		violations = append(violations, fmt.Sprintf("above_max_price:%.2f", c.MaxPrice))
	}

	delta := newPrice - currentPrice
	if delta > 0 && c.MaxIncrease > 0 && delta > c.MaxIncrease {
		violations = append(violations, fmt.Sprintf("step_increase_exceeds:%.2f", c.MaxIncrease))
	}
	if delta < 0 && c.MaxDecrease > 0 && -delta > c.MaxDecrease {
		violations = append(violations, fmt.Sprintf("step_decrease_exceeds:%.2f", c.MaxDecrease))
	}

	return violations
}

// ValidateChangeForListing runs ValidateChange plus the margin bounds,
// which need the listing's cost, and the daily change cap, which needs
// today's change count from the caller.
func ValidateChangeForListing(r *model.Rule, listing model.Listing, newPrice float64, changesToday int) []string {
	violations := ValidateChange(r, listing.CurrentPrice, newPrice)
	c := r.Constraints

	if listing.CostPrice > 0 && newPrice > 0 {
		marginPct := (newPrice - listing.CostPrice) / newPrice * 100
		if c.MinMarginPct > 0 && marginPct < c.MinMarginPct {
			violations = append(violations, fmt.Sprintf("below_min_margin:%.1f", c.MinMarginPct))
		}
		if c.MaxMarginPct > 0 && marginPct > c.MaxMarginPct {
			violations = append(violations, fmt.Sprintf("above_max_margin:%.1f", c.MaxMarginPct))
		}
	}
	if c.MaxDailyChanges > 0 && changesToday >= c.MaxDailyChanges {
		violations = append(violations, fmt.Sprintf("daily_change_cap:%d", c.MaxDailyChanges))
	}

	return violations
}
