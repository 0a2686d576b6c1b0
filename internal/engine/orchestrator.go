// Package engine is the execution orchestrator: it routes triggers to
// eligible rules, runs per-listing repricing pipelines inside sessions,
// and maintains the session ledger and rule counters.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skuflow/repricer/internal/alert"
	"github.com/skuflow/repricer/internal/buybox"
	"github.com/skuflow/repricer/internal/intel"
	"github.com/skuflow/repricer/internal/market"
	"github.com/skuflow/repricer/internal/model"
	"github.com/skuflow/repricer/internal/rule"
	"github.com/skuflow/repricer/internal/strategy"
)

// marketLookback is the history window fed to the market analyzer when
// building a repricing context.
const marketLookback = 7 * 24 * time.Hour

// Identity describes our own seller attributes, used for win-probability
// estimation and buy-box event classification.
type Identity struct {
	SellerID      string
	Fulfillment   model.FulfillmentType
	Prime         bool
	SellerRating  float64
	FeedbackCount int
}

// Orchestrator wires the decision components together. All collaborators
// are injected; the orchestrator owns no I/O beyond its ports.
type Orchestrator struct {
	rules      *RuleStore
	ledger     *SessionLedger
	store      *intel.Store
	market     *market.Analyzer
	strategist *strategy.Strategist
	buybox     *buybox.Analyzer
	provider   ListingProvider
	applier    PriceApplier
	alerts     *alert.Dispatcher
	identity   Identity
	log        zerolog.Logger

	// dailyChanges counts successful price changes per listing per day,
	// backing the max-daily-changes constraint. Guarded by dailyMu: the
	// scheduler tick and the monitor's event notifications enter the
	// orchestrator from different goroutines.
	dailyMu      sync.Mutex
	dailyChanges map[string]int
	dailyStamp   string
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Rules      *RuleStore
	Ledger     *SessionLedger
	Store      *intel.Store
	Market     *market.Analyzer
	Strategist *strategy.Strategist
	BuyBox     *buybox.Analyzer
	Provider   ListingProvider
	Applier    PriceApplier
	Alerts     *alert.Dispatcher
	Identity   Identity
	Log        zerolog.Logger
}

// NewOrchestrator creates the orchestrator.
func NewOrchestrator(d Deps) *Orchestrator {
	return &Orchestrator{
		rules:        d.Rules,
		ledger:       d.Ledger,
		store:        d.Store,
		market:       d.Market,
		strategist:   d.Strategist,
		buybox:       d.BuyBox,
		provider:     d.Provider,
		applier:      d.Applier,
		alerts:       d.Alerts,
		identity:     d.Identity,
		log:          d.Log.With().Str("component", "orchestrator").Logger(),
		dailyChanges: make(map[string]int),
	}
}

// HandleTrigger routes one trigger to every eligible rule whose primary
// condition matches, opening one session per rule. Ineligible rules are
// skipped silently; skips are expected, not errors.
func (o *Orchestrator) HandleTrigger(ctx context.Context, trig model.TriggerSource) []model.Session {
	now := time.Now()
	var sessions []model.Session

	for _, r := range o.rules.List() {
		if reason := rule.EligibilityReason(&r, now); reason != "" {
			o.log.Debug().Str("rule", r.ID).Str("reason", reason).Msg("rule skipped")
			continue
		}
		if !triggerRoutesTo(&r, trig) {
			continue
		}
		if trig.ASIN != "" && !rule.AppliesToASIN(&r, trig.ASIN) {
			continue
		}
		sessions = append(sessions, o.runSession(ctx, r, trig, nil))
	}
	return sessions
}

// triggerRoutesTo decides whether a trigger kind reaches a rule at all.
// Scheduled ticks reach rules with scheduled primaries whose next
// execution is due; events reach rules whose primary matches the event
// kind; manual triggers are routed explicitly by TriggerManual.
func triggerRoutesTo(r *model.Rule, trig model.TriggerSource) bool {
	primary := r.Trigger.Primary.Kind
	switch trig.Kind {
	case model.TriggerScheduled:
		if primary != model.TriggerScheduled && primary != model.TriggerMarginBelow {
			return false
		}
		return r.NextExecutionTime.IsZero() || !r.NextExecutionTime.After(time.Now())
	case model.TriggerCompetitorPriceChange, model.TriggerBuyBoxLost:
		return primary == trig.Kind
	default:
		return false
	}
}

// TriggerManual runs one rule immediately on behalf of a user, optionally
// restricted to specific listings. Eligibility still applies: manual
// runs respect blackouts and cooldowns.
func (o *Orchestrator) TriggerManual(ctx context.Context, userID, ruleID string, listingIDs []string) (model.Session, error) {
	r, err := o.rules.Get(ruleID)
	if err != nil {
		return model.Session{}, err
	}
	now := time.Now()
	if reason := rule.EligibilityReason(&r, now); reason != "" {
		return model.Session{}, fmt.Errorf("rule not eligible: %s", reason)
	}

	trig := model.TriggerSource{
		Kind:    model.TriggerManual,
		Payload: map[string]string{"user_id": userID},
	}
	return o.runSession(ctx, r, trig, listingIDs), nil
}

// OnCompetitorPriceChange is the event entry point for detected rival
// price moves. It fans out to rules with a matching primary trigger.
func (o *Orchestrator) OnCompetitorPriceChange(ctx context.Context, asin, sellerID string, oldPrice, newPrice float64) []model.Session {
	trig := model.TriggerSource{
		Kind: model.TriggerCompetitorPriceChange,
		ASIN: asin,
		Payload: map[string]string{
			"seller_id": sellerID,
			"old_price": fmt.Sprintf("%.2f", oldPrice),
			"new_price": fmt.Sprintf("%.2f", newPrice),
		},
	}
	return o.HandleTrigger(ctx, trig)
}

// OnBuyBoxLost records the loss in the buy-box ledger, raises the alert,
// and fans the event out to matching rules.
func (o *Orchestrator) OnBuyBoxLost(ctx context.Context, asin, previousWinner, newWinner string, newPrice float64) []model.Session {
	our := o.ourOffer(ctx, asin)
	winner, _ := o.store.Record(asin, newWinner)

	_, a := o.buybox.RecordLoss(asin, buybox.LossDetails{
		WinnerSellerID:    newWinner,
		WinnerPrice:       newPrice,
		WinnerFulfillment: winner.Fulfillment,
		WinnerPrime:       winner.Prime,
		Our:               our,
	}, time.Now())
	o.alerts.Dispatch(a)

	trig := model.TriggerSource{
		Kind: model.TriggerBuyBoxLost,
		ASIN: asin,
		Payload: map[string]string{
			"previous_winner": previousWinner,
			"new_winner":      newWinner,
			"new_price":       fmt.Sprintf("%.2f", newPrice),
		},
	}
	return o.HandleTrigger(ctx, trig)
}

// OnBuyBoxWon records the win in the buy-box ledger and raises its alert.
// The event is "regained" when the ledger shows we last lost this ASIN.
func (o *Orchestrator) OnBuyBoxWon(ctx context.Context, asin, previousHolder string) {
	our := o.ourOffer(ctx, asin)

	fieldLowest := 0.0
	for _, rec := range o.store.ActiveCompetitors(asin) {
		if rec.SellerID == o.identity.SellerID {
			continue
		}
		if fieldLowest == 0 || rec.CurrentPrice < fieldLowest {
			fieldLowest = rec.CurrentPrice
		}
	}

	regained := false
	if events := o.store.BuyBoxEvents(asin, time.Time{}); len(events) > 0 {
		regained = events[len(events)-1].Kind == model.BuyBoxLost
	}

	_, a := o.buybox.RecordWin(asin, buybox.WinDetails{
		Regained:    regained,
		Our:         our,
		FieldLowest: fieldLowest,
	}, time.Now())
	o.alerts.Dispatch(a)
	o.log.Info().Str("asin", asin).Str("previous_holder", previousHolder).
		Bool("regained", regained).Msg("buy box won")
}

// runSession executes one rule against one trigger. Setup failures mark
// the whole session failed; per-listing failures are recorded and the
// loop continues.
func (o *Orchestrator) runSession(ctx context.Context, r model.Rule, trig model.TriggerSource, onlyListings []string) model.Session {
	now := time.Now()
	s := o.ledger.Begin(r, trig, now)
	log := o.log.With().Str("session", s.ID).Str("rule", r.ID).Logger()

	if err := o.ledger.Start(s.ID); err != nil {
		log.Error().Err(err).Msg("starting session")
	}

	listings, err := o.provider.ListingsFor(ctx, r.Targets)
	if err != nil {
		// Setup failure: the one place a whole session fails.
		final, _ := o.ledger.Complete(s.ID, fmt.Sprintf("resolving listings: %v", err), time.Now())
		log.Error().Err(err).Msg("session setup failed")
		o.finishRule(r.ID, final)
		return final
	}

	for _, listing := range listings {
		if trig.ASIN != "" && listing.ASIN != trig.ASIN {
			continue
		}
		if len(onlyListings) > 0 && !containsID(onlyListings, listing.ID) {
			continue
		}
		res := o.processListing(ctx, &r, listing, trig)
		if err := o.ledger.Append(s.ID, res); err != nil {
			log.Error().Err(err).Msg("appending result")
			break
		}
	}

	final, _ := o.ledger.Complete(s.ID, "", time.Now())
	log.Info().
		Str("status", string(final.Status)).
		Int("processed", final.ProductsProcessed).
		Int("updated", final.SuccessfulUpdates).
		Int("failed", final.FailedUpdates).
		Int("skipped", final.SkippedUpdates).
		Msg("session complete")

	o.finishRule(r.ID, final)
	return final
}

// processListing runs the per-listing pipeline: refresh facts, evaluate
// trigger conditions, compute the candidate price, validate constraints,
// apply. Every failure path becomes a structured result, never a panic
// up the stack.
func (o *Orchestrator) processListing(ctx context.Context, r *model.Rule, listing model.Listing, trig model.TriggerSource) model.ExecutionResult {
	now := time.Now()
	res := model.ExecutionResult{
		ListingID:   listing.ID,
		ASIN:        listing.ASIN,
		OldPrice:    listing.CurrentPrice,
		ProcessedAt: now,
	}

	// Re-read current facts so repeated applications stay idempotent.
	if fresh, err := o.provider.Refresh(ctx, listing.ID); err == nil {
		listing = fresh
		res.OldPrice = listing.CurrentPrice
	}

	if !rule.Applies(r, listing) || !rule.TriggerMatches(r, trig, listing) {
		res.Outcome = model.OutcomeSkipped
		res.Reason = "trigger conditions not met"
		return res
	}

	snap := o.store.Snapshot(listing.ASIN)
	res.Snapshot = &snap

	newPrice, reasoning, err := o.computePrice(ctx, r, listing, snap)
	switch {
	case err == rule.ErrNoAction:
		res.Outcome = model.OutcomeNoAction
		res.Reason = "rule action produces no price change"
		return res
	case err != nil:
		res.Outcome = model.OutcomeComputationFailed
		res.Reason = reasoning
		res.Error = err.Error()
		return res
	}

	if math.Abs(newPrice-listing.CurrentPrice) < 0.01 {
		res.Outcome = model.OutcomeNoAction
		res.NewPrice = newPrice
		res.Reason = "price already at target"
		return res
	}

	violations := rule.ValidateChangeForListing(r, listing, newPrice, o.changesToday(listing.ID, now))
	if len(violations) > 0 {
		res.Outcome = model.OutcomeConstraintViolation
		res.NewPrice = newPrice
		res.Reason = reasoning
		res.ViolatedConstraints = violations
		return res
	}

	if err := o.applier.ApplyPrice(ctx, listing.ID, newPrice, r.ID, reasoning); err != nil {
		res.Outcome = model.OutcomeApplyFailed
		res.NewPrice = newPrice
		res.Reason = reasoning
		res.Error = err.Error()
		return res
	}

	o.bumpChangesToday(listing.ID, now)
	res.Outcome = model.OutcomeSuccess
	res.NewPrice = newPrice
	res.PriceChange = roundCents(newPrice - listing.CurrentPrice)
	res.Reason = reasoning

	if r.Action.NotifyOnChange {
		res.AlertRaised = true
		o.alerts.Dispatch(alert.Alert{
			Type:     alert.TypeSessionReport,
			Severity: alert.SeverityLow,
			ASIN:     listing.ASIN,
			Message: fmt.Sprintf("price changed from $%.2f to $%.2f: %s",
				listing.CurrentPrice, newPrice, reasoning),
			Timestamp: now,
		})
	}
	return res
}

// computePrice picks the rule's own action or delegates to the strategist
// when the rule is configured to optimize.
func (o *Orchestrator) computePrice(ctx context.Context, r *model.Rule, listing model.Listing, snap model.CompetitiveSnapshot) (float64, string, error) {
	if r.Action.Kind != model.ActionOptimize {
		return rule.ComputePrice(r, listing.CurrentPrice, &snap, listing)
	}

	now := time.Now()
	conditions := o.market.Analyze(listing.ASIN, marketLookback, now)
	rec, err := o.strategist.Recommend(strategy.Request{
		Listing:     listing,
		Snapshot:    snap,
		Conditions:  conditions,
		Our:         o.ourOfferForListing(listing),
		Competitors: o.competitorOffers(listing.ASIN),
		Goal:        strategy.GoalBalanced,
		Risk:        strategy.RiskModerate,
		History:     o.store.History(listing.ASIN, now.Add(-marketLookback)),
	})
	if err != nil {
		return 0, "strategist produced no candidate", err
	}
	reasoning := fmt.Sprintf("%s: %s (score %.0f)", rec.Best.Strategy, rec.Best.Reasoning, rec.Best.Score)
	return rec.Best.Price, reasoning, nil
}

// finishRule updates the rule's counters, rolling metrics and next
// execution time after a session reaches a terminal state.
func (o *Orchestrator) finishRule(ruleID string, s model.Session) {
	now := time.Now()
	o.rules.update(ruleID, func(r *model.Rule) {
		if r.Trigger.Period > 0 && !r.LastExecutionTime.IsZero() &&
			now.Sub(r.LastExecutionTime) >= r.Trigger.Period {
			r.ExecutionCount = 0
		}
		r.ExecutionCount++
		r.LastExecutionTime = now
		r.NextExecutionTime = nextExecution(r.Schedule, now)

		m := &r.Metrics
		m.TotalSessions++
		m.SuccessfulUpdates += s.SuccessfulUpdates
		m.FailedUpdates += s.FailedUpdates
		m.SkippedUpdates += s.SkippedUpdates
		m.TotalPriceChange += s.TotalPriceChange
		if m.SuccessfulUpdates > 0 {
			m.AvgPriceChange = m.TotalPriceChange / float64(m.SuccessfulUpdates)
		}
		m.LastSessionAt = now

		if s.CriticalError != "" {
			r.LastError = s.CriticalError
		} else {
			r.LastError = ""
		}
	})
}

func nextExecution(sched model.ScheduleSpec, now time.Time) time.Time {
	switch sched.Frequency {
	case model.ScheduleHourly:
		return now.Add(time.Hour)
	case model.ScheduleDaily:
		return now.Add(24 * time.Hour)
	case model.ScheduleCustom:
		if sched.Every > 0 {
			return now.Add(sched.Every)
		}
		return now.Add(time.Hour)
	default: // continuous: eligible on the next tick
		return now
	}
}

// ourOffer builds our offer attributes for an ASIN from the provider's
// listing facts, falling back to identity defaults.
func (o *Orchestrator) ourOffer(ctx context.Context, asin string) buybox.OurOffer {
	our := buybox.OurOffer{
		Fulfillment:   o.identity.Fulfillment,
		Prime:         o.identity.Prime,
		SellerRating:  o.identity.SellerRating,
		FeedbackCount: o.identity.FeedbackCount,
		StockLevel:    1,
	}
	listings, err := o.provider.ListingsFor(ctx, model.TargetSelector{ASINs: []string{asin}})
	if err == nil && len(listings) > 0 {
		our.Price = listings[0].CurrentPrice
		our.StockLevel = listings[0].InventoryLevel
		if listings[0].InventoryLevel == 0 {
			our.StockLevel = 1 // unknown inventory is assumed in stock
		}
	}
	return our
}

func (o *Orchestrator) ourOfferForListing(listing model.Listing) buybox.OurOffer {
	stock := listing.InventoryLevel
	if stock == 0 {
		stock = 1
	}
	return buybox.OurOffer{
		Price:         listing.CurrentPrice,
		Fulfillment:   o.identity.Fulfillment,
		Prime:         o.identity.Prime,
		SellerRating:  o.identity.SellerRating,
		FeedbackCount: o.identity.FeedbackCount,
		StockLevel:    stock,
	}
}

func (o *Orchestrator) competitorOffers(asin string) []model.Offer {
	records := o.store.ActiveCompetitors(asin)
	offers := make([]model.Offer, 0, len(records))
	for _, r := range records {
		if r.SellerID == o.identity.SellerID {
			continue
		}
		offers = append(offers, model.Offer{
			SellerID:      r.SellerID,
			SellerName:    r.SellerName,
			Price:         r.CurrentPrice,
			ShippingCost:  r.ShippingCost,
			Fulfillment:   r.Fulfillment,
			Prime:         r.Prime,
			HasBuyBox:     r.HasBuyBox,
			InStock:       r.InStock,
			SellerRating:  r.SellerRating,
			FeedbackCount: r.FeedbackCount,
		})
	}
	return offers
}

// changesToday returns the successful change count for a listing today.
// The counter map resets when the calendar day rolls over.
func (o *Orchestrator) changesToday(listingID string, now time.Time) int {
	o.dailyMu.Lock()
	defer o.dailyMu.Unlock()
	o.rollDaily(now)
	return o.dailyChanges[listingID]
}

func (o *Orchestrator) bumpChangesToday(listingID string, now time.Time) {
	o.dailyMu.Lock()
	defer o.dailyMu.Unlock()
	o.rollDaily(now)
	o.dailyChanges[listingID]++
}

// rollDaily must be called with dailyMu held.
func (o *Orchestrator) rollDaily(now time.Time) {
	stamp := now.Format("2006-01-02")
	if stamp != o.dailyStamp {
		o.dailyStamp = stamp
		o.dailyChanges = make(map[string]int)
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func roundCents(p float64) float64 {
	return math.Round(p*100) / 100
}
