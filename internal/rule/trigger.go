package rule

import (
	"github.com/skuflow/repricer/internal/model"
)

// TriggerMatches evaluates the rule's trigger specification against the
// firing trigger and the listing under consideration. The primary
// condition must be evaluated; secondaries combine with AND/OR.
func TriggerMatches(r *model.Rule, trig model.TriggerSource, listing model.Listing) bool {
	spec := r.Trigger
	primary := ConditionMet(spec.Primary, trig, listing)

	if len(spec.Secondary) == 0 {
		return primary
	}

	switch spec.Combine {
	case model.CombineOr:
		if primary {
			return true
		}
		for _, cond := range spec.Secondary {
			if ConditionMet(cond, trig, listing) {
				return true
			}
		}
		return false
	default: // AND is the default combinator
		if !primary {
			return false
		}
		for _, cond := range spec.Secondary {
			if !ConditionMet(cond, trig, listing) {
				return false
			}
		}
		return true
	}
}

// ConditionMet evaluates one trigger condition.
//
// Scheduled and manual conditions are always true for their trigger kind:
// the schedule itself decided the timing. Event conditions match the
// trigger's kind, and margin_below additionally compares the listing's
// current margin against the threshold.
func ConditionMet(cond model.TriggerCondition, trig model.TriggerSource, listing model.Listing) bool {
	switch cond.Kind {
	case model.TriggerScheduled:
		return trig.Kind == model.TriggerScheduled || trig.Kind == model.TriggerManual
	case model.TriggerManual:
		return trig.Kind == model.TriggerManual
	case model.TriggerCompetitorPriceChange:
		return trig.Kind == model.TriggerCompetitorPriceChange
	case model.TriggerBuyBoxLost:
		return trig.Kind == model.TriggerBuyBoxLost
	case model.TriggerMarginBelow:
		return listing.MarginPct() < cond.Threshold
	default:
		return false
	}
}

// PrimaryKind returns the rule's primary trigger kind, used for event
// fan-out routing.
func PrimaryKind(r *model.Rule) model.TriggerKind {
	return r.Trigger.Primary.Kind
}
