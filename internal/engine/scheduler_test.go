package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuflow/repricer/internal/model"
)

// blockingProvider parks ListingsFor until released, holding a tick open.
type blockingProvider struct {
	fakeProvider
	release chan struct{}
	started chan struct{}
}

func (b *blockingProvider) ListingsFor(ctx context.Context, sel model.TargetSelector) ([]model.Listing, error) {
	b.started <- struct{}{}
	<-b.release
	return b.fakeProvider.ListingsFor(ctx, sel)
}

func TestTickSingleFlight(t *testing.T) {
	e := newTestEngine()
	blocking := &blockingProvider{
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	e.orch.provider = blocking
	e.rules.Add(undercutRule())

	s := NewScheduler(e.orch, e.ledger, time.Minute, time.Hour, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		s.Tick(context.Background())
		close(done)
	}()
	<-blocking.started // first tick is now inside the session

	s.Tick(context.Background()) // overlapping tick must be dropped
	assert.Equal(t, int64(1), s.TicksDropped.Load())

	close(blocking.release)
	<-done
	assert.Equal(t, int64(1), s.TicksDropped.Load(), "completed ticks are not counted as drops")
}

func TestTickSweepsStaleSessions(t *testing.T) {
	e := newTestEngine()
	s := NewScheduler(e.orch, e.ledger, time.Minute, time.Nanosecond, zerolog.Nop())

	stuck := e.ledger.Begin(model.Rule{ID: "r1"}, model.TriggerSource{Kind: model.TriggerScheduled}, time.Now().Add(-time.Hour))
	require.NoError(t, e.ledger.Start(stuck.ID))

	s.Tick(context.Background())

	got, ok := e.ledger.Get(stuck.ID)
	require.True(t, ok)
	assert.Equal(t, model.SessionFailed, got.Status)
	assert.Contains(t, got.CriticalError, "maximum age")
}

func TestSchedulerStartStop(t *testing.T) {
	e := newTestEngine()
	s := NewScheduler(e.orch, e.ledger, time.Hour, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	s.Stop()
}
