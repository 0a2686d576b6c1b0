package monitor

import (
	"sync"
	"time"
)

// CallBudget is a token bucket bounding how many offer-source calls a
// monitoring pass may spend. One token refills every refillRate; a pass
// that drains the bucket stops early and leaves the remaining records
// for the next tick.
type CallBudget struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewCallBudget creates a full bucket.
func NewCallBudget(maxTokens int, refillRate time.Duration) *CallBudget {
	return &CallBudget{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Spend consumes one token if available.
func (b *CallBudget) Spend() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Remaining returns the tokens currently available.
func (b *CallBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

func (b *CallBudget) refill() {
	if b.refillRate <= 0 {
		return
	}
	elapsed := time.Since(b.lastRefill)
	add := int(elapsed / b.refillRate)
	if add <= 0 {
		return
	}
	b.tokens += add
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(add) * b.refillRate)
}
