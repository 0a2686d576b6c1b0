package rule

import (
	"errors"
	"testing"
	"time"

	"github.com/skuflow/repricer/internal/model"
)

func activeRule() model.Rule {
	return model.Rule{
		ID:       "r1",
		Status:   model.RuleActive,
		IsActive: true,
		Action:   model.ActionSpec{Kind: model.ActionMatchLowest},
	}
}

func snapshotWith(min float64) *model.CompetitiveSnapshot {
	return &model.CompetitiveSnapshot{
		MinPrice:    min,
		MaxPrice:    min + 10,
		AvgPrice:    min + 5,
		TotalOffers: 3,
	}
}

func TestEligibility(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) // a Tuesday

	tests := []struct {
		name   string
		modify func(*model.Rule)
		want   string
	}{
		{"active rule is eligible", func(r *model.Rule) {}, ""},
		{"inactive flag", func(r *model.Rule) { r.IsActive = false }, "inactive"},
		{"paused status", func(r *model.Rule) { r.Status = model.RulePaused }, "inactive"},
		{"within cooldown", func(r *model.Rule) {
			r.Trigger.Cooldown = time.Hour
			r.LastExecutionTime = now.Add(-30 * time.Minute)
		}, "cooldown"},
		{"cooldown elapsed", func(r *model.Rule) {
			r.Trigger.Cooldown = time.Hour
			r.LastExecutionTime = now.Add(-2 * time.Hour)
		}, ""},
		{"inside blackout", func(r *model.Rule) {
			r.Constraints.Blackouts = []model.BlackoutWindow{
				{Days: []time.Weekday{time.Tuesday}, Start: "11:00", End: "13:00"},
			}
		}, "blackout"},
		{"blackout on other weekday", func(r *model.Rule) {
			r.Constraints.Blackouts = []model.BlackoutWindow{
				{Days: []time.Weekday{time.Saturday}, Start: "11:00", End: "13:00"},
			}
		}, ""},
		{"execution cap reached", func(r *model.Rule) {
			r.Trigger.MaxPerPeriod = 2
			r.Trigger.Period = 24 * time.Hour
			r.ExecutionCount = 2
			r.LastExecutionTime = now.Add(-time.Hour)
		}, "execution_cap"},
		{"execution cap period rolled over", func(r *model.Rule) {
			r.Trigger.MaxPerPeriod = 2
			r.Trigger.Period = 24 * time.Hour
			r.ExecutionCount = 2
			r.LastExecutionTime = now.Add(-25 * time.Hour)
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := activeRule()
			tt.modify(&r)
			got := EligibilityReason(&r, now)
			if got != tt.want {
				t.Errorf("EligibilityReason() = %q, want %q", got, tt.want)
			}
			if IsEligible(&r, now) != (tt.want == "") {
				t.Errorf("IsEligible() disagrees with EligibilityReason %q", got)
			}
		})
	}
}

func TestBlackoutWrapsMidnight(t *testing.T) {
	windows := []model.BlackoutWindow{{Start: "22:00", End: "02:00"}}

	late := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	early := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	midday := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if !InBlackout(windows, late) {
		t.Error("23:30 should be inside a 22:00-02:00 window")
	}
	if !InBlackout(windows, early) {
		t.Error("01:00 should be inside a 22:00-02:00 window")
	}
	if InBlackout(windows, midday) {
		t.Error("12:00 should be outside a 22:00-02:00 window")
	}
}

func TestBlackoutMalformedNeverBlocks(t *testing.T) {
	windows := []model.BlackoutWindow{{Start: "not-a-time", End: "02:00"}}
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	if InBlackout(windows, now) {
		t.Error("malformed window must never block execution")
	}
}

func TestComputePrice(t *testing.T) {
	listing := model.Listing{CurrentPrice: 30.00, CostPrice: 15.00}

	tests := []struct {
		name      string
		action    model.ActionSpec
		snap      *model.CompetitiveSnapshot
		wantPrice float64
		wantErr   error
	}{
		{
			name:      "undercut by amount",
			action:    model.ActionSpec{Kind: model.ActionUndercutByAmount, Amount: 0.01},
			snap:      snapshotWith(28.95),
			wantPrice: 28.94,
		},
		{
			name:      "match lowest",
			action:    model.ActionSpec{Kind: model.ActionMatchLowest},
			snap:      snapshotWith(27.50),
			wantPrice: 27.50,
		},
		{
			name:      "undercut by percent",
			action:    model.ActionSpec{Kind: model.ActionUndercutByPct, Percent: 10},
			snap:      snapshotWith(20.00),
			wantPrice: 18.00,
		},
		{
			name:      "increase by amount",
			action:    model.ActionSpec{Kind: model.ActionIncreaseByAmount, Amount: 2.50},
			wantPrice: 32.50,
		},
		{
			name:      "increase by percent",
			action:    model.ActionSpec{Kind: model.ActionIncreaseByPct, Percent: 5},
			wantPrice: 31.50,
		},
		{
			name:      "set fixed",
			action:    model.ActionSpec{Kind: model.ActionSetFixed, FixedPrice: 24.99},
			wantPrice: 24.99,
		},
		{
			name:      "maintain margin at 25 percent of cost 15",
			action:    model.ActionSpec{Kind: model.ActionMaintainMargin, TargetMarginPct: 25},
			wantPrice: 20.00,
		},
		{
			name:    "none produces no action",
			action:  model.ActionSpec{Kind: model.ActionNone},
			wantErr: ErrNoAction,
		},
		{
			name:    "unknown kind rejected",
			action:  model.ActionSpec{Kind: model.ActionKind("surge_pricing")},
			wantErr: ErrUnknownAction,
		},
		{
			name:    "undercut without snapshot",
			action:  model.ActionSpec{Kind: model.ActionUndercutByAmount, Amount: 0.01},
			wantErr: ErrMissingInputs,
		},
		{
			name:    "maintain margin out of range",
			action:  model.ActionSpec{Kind: model.ActionMaintainMargin, TargetMarginPct: 100},
			wantErr: ErrMissingInputs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := activeRule()
			r.Action = tt.action
			got, reasoning, err := ComputePrice(&r, listing.CurrentPrice, tt.snap, listing)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ComputePrice() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ComputePrice() unexpected error: %v", err)
			}
			if got != tt.wantPrice {
				t.Errorf("ComputePrice() = %.2f, want %.2f", got, tt.wantPrice)
			}
			if reasoning == "" {
				t.Error("ComputePrice() returned empty reasoning")
			}
		})
	}
}

// Repeated computation with identical inputs must return identical
// results; pricing never depends on hidden state.
func TestComputePriceIdempotent(t *testing.T) {
	r := activeRule()
	r.Action = model.ActionSpec{Kind: model.ActionUndercutByAmount, Amount: 0.05}
	snap := snapshotWith(42.37)
	listing := model.Listing{CurrentPrice: 45.00, CostPrice: 20.00}

	first, _, err := ComputePrice(&r, listing.CurrentPrice, snap, listing)
	if err != nil {
		t.Fatalf("ComputePrice() error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _, err := ComputePrice(&r, listing.CurrentPrice, snap, listing)
		if err != nil {
			t.Fatalf("ComputePrice() error on repeat: %v", err)
		}
		if again != first {
			t.Fatalf("ComputePrice() not idempotent: %.2f then %.2f", first, again)
		}
	}
}

func TestValidateChange(t *testing.T) {
	tests := []struct {
		name        string
		constraints model.ConstraintSet
		current     float64
		candidate   float64
		want        []string
	}{
		{
			name:        "within bounds",
			constraints: model.ConstraintSet{MinPrice: 10, MaxPrice: 50},
			current:     30, candidate: 28,
			want: nil,
		},
		{
			name:        "below min price",
			constraints: model.ConstraintSet{MinPrice: 25},
			current:     30, candidate: 24.50,
			want: []string{"below_min_price:25.00"},
		},
		{
			name:        "above max price",
			constraints: model.ConstraintSet{MaxPrice: 40},
			current:     30, candidate: 41,
			want: []string{"above_max_price:40.00"},
		},
		{
			name:        "increase step exceeded",
			constraints: model.ConstraintSet{MaxIncrease: 1},
			current:     30, candidate: 32,
			want: []string{"step_increase_exceeds:1.00"},
		},
		{
			name:        "decrease step not checked on increase",
			constraints: model.ConstraintSet{MaxDecrease: 1},
			current:     30, candidate: 32,
			want: nil,
		},
		{
			name:        "decrease step exceeded",
			constraints: model.ConstraintSet{MaxDecrease: 1},
			current:     30, candidate: 28,
			want: []string{"step_decrease_exceeds:1.00"},
		},
		{
			name:      "non positive price",
			current:   30, candidate: 0,
			want: []string{"non_positive_price"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := activeRule()
			r.Constraints = tt.constraints
			got := ValidateChange(&r, tt.current, tt.candidate)
			if len(got) != len(tt.want) {
				t.Fatalf("ValidateChange() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("violation[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestValidateChangeForListing(t *testing.T) {
	listing := model.Listing{CurrentPrice: 30, CostPrice: 18}

	r := activeRule()
	r.Constraints = model.ConstraintSet{MinMarginPct: 30}
	// $22 on $18 cost is an 18.2% margin, below the 30% floor.
	got := ValidateChangeForListing(&r, listing, 22, 0)
	if len(got) != 1 || got[0] != "below_min_margin:30.0" {
		t.Errorf("margin floor: got %v", got)
	}

	r = activeRule()
	r.Constraints = model.ConstraintSet{MaxDailyChanges: 3}
	got = ValidateChangeForListing(&r, listing, 29, 3)
	if len(got) != 1 || got[0] != "daily_change_cap:3" {
		t.Errorf("daily cap: got %v", got)
	}
	if got = ValidateChangeForListing(&r, listing, 29, 2); len(got) != 0 {
		t.Errorf("under daily cap should pass, got %v", got)
	}
}
