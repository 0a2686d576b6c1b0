package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skuflow/repricer/internal/model"
)

// RuleStore is the in-memory rule registry. The orchestrator is the only
// writer of execution counters and timestamps; external callers add and
// replace whole rules.
type RuleStore struct {
	mu    sync.RWMutex
	rules map[string]*model.Rule
}

// NewRuleStore creates an empty registry.
func NewRuleStore() *RuleStore {
	return &RuleStore{rules: make(map[string]*model.Rule)}
}

// Add registers a rule, assigning an ID when absent.
func (rs *RuleStore) Add(r model.Rule) model.Rule {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	cp := r
	rs.rules[r.ID] = &cp
	return r
}

// Get returns a copy of one rule.
func (rs *RuleStore) Get(id string) (model.Rule, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	r, ok := rs.rules[id]
	if !ok {
		return model.Rule{}, fmt.Errorf("rule %s not found", id)
	}
	return *r, nil
}

// List returns copies of all rules ordered by priority, highest first.
func (rs *RuleStore) List() []model.Rule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	out := make([]model.Rule, 0, len(rs.rules))
	for _, r := range rs.rules {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// update applies a mutation to the stored rule under the lock. Used by
// the orchestrator after session completion.
func (rs *RuleStore) update(id string, fn func(*model.Rule)) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if r, ok := rs.rules[id]; ok {
		fn(r)
		r.UpdatedAt = time.Now()
	}
}
