package handlers

import (
	"sync"

	"energy-network/internal/dispatch"
)

// DefaultStoredResults bounds how many results stay retrievable by ID.
const DefaultStoredResults = 100

// resultStore keeps the most recent results; the oldest is evicted first.
type resultStore struct {
	mu      sync.RWMutex
	max     int
	order   []string
	results map[string]*dispatch.Result
}

func newResultStore(max int) *resultStore {
	if max <= 0 {
		max = DefaultStoredResults
	}
	return &resultStore{max: max, results: make(map[string]*dispatch.Result)}
}

func (s *resultStore) put(r *dispatch.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.results[r.ID] = r
	for len(s.order) > s.max {
		delete(s.results, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *resultStore) get(id string) (*dispatch.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	return r, ok
}
