package intel

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/skuflow/repricer/internal/model"
)

// storeState is the serialized form of the store.
type storeState struct {
	SavedAt time.Time                            `json:"saved_at"`
	Records map[string]*model.CompetitorRecord   `json:"records"`
	History map[string][]model.PriceHistoryEntry `json:"history"`
	Events  map[string][]model.BuyBoxEvent       `json:"events"`
}

// Save writes the store state to a JSON file so competitor history
// survives a restart.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	state := storeState{
		SavedAt: time.Now(),
		Records: s.records,
		History: s.history,
		Events:  s.events,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling store state: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing store state: %w", err)
	}
	return nil
}

// Load replaces the store contents from a JSON file. A missing file is
// not an error; a corrupt file starts fresh.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading store state: %w", err)
	}

	var state storeState
	if err := json.Unmarshal(data, &state); err != nil {
		// Ignore corrupt state, start fresh
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if state.Records != nil {
		s.records = state.Records
	}
	if state.History != nil {
		s.history = state.History
	}
	if state.Events != nil {
		s.events = state.Events
	}
	return nil
}
