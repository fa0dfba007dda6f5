package stub

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getmockd/protomock/pkg/metrics"
)

// Store is a thread-safe in-memory set of stubs. Every Store contributes its
// count to the process-wide metrics.Stubs gauge, so several stores may coexist.
type Store struct {
	mu    sync.RWMutex
	stubs map[string]*Stub
	seq   uint64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{stubs: make(map[string]*Stub)}
}

// Add validates and registers a stub, assigning an ID when it has none.
// A stub with an existing ID replaces the previous one.
func (s *Store) Add(st *Stub) (*Stub, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.stubs)
	s.addLocked(st)
	metrics.Stubs.Add(float64(len(s.stubs) - before))
	return st, nil
}

func (s *Store) addLocked(st *Stub) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	s.seq++
	st.seq = s.seq
	s.stubs[st.ID] = st
}

// Replace atomically swaps the full stub set. Nothing changes if any stub is invalid.
func (s *Store) Replace(stubs []*Stub) error {
	for _, st := range stubs {
		if err := st.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.stubs)
	s.stubs = make(map[string]*Stub, len(stubs))
	for _, st := range stubs {
		s.addLocked(st)
	}
	metrics.Stubs.Add(float64(len(s.stubs) - before))
	return nil
}

// Get returns the stub with the given ID, or nil.
func (s *Store) Get(id string) *Stub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stubs[id]
}

// Delete removes a stub. Returns false if it did not exist.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stubs[id]; !ok {
		return false
	}
	delete(s.stubs, id)
	metrics.Stubs.Dec()
	return true
}

// Reset removes every stub.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	metrics.Stubs.Sub(float64(len(s.stubs)))
	s.stubs = make(map[string]*Stub)
}

// Count returns the number of registered stubs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stubs)
}

// List returns all stubs in match order: by priority, then most recently
// registered first.
func (s *Store) List() []*Stub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Match returns the first stub in match order that matches r.
func (s *Store) Match(r *http.Request) (*Stub, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.sortedLocked() {
		if st.Matches(r) {
			return st, true
		}
	}
	return nil, false
}

func (s *Store) sortedLocked() []*Stub {
	result := make([]*Stub, 0, len(s.stubs))
	for _, st := range s.stubs {
		result = append(result, st)
	}
	sort.Slice(result, func(i, j int) bool {
		pi, pj := result[i].EffectivePriority(), result[j].EffectivePriority()
		if pi != pj {
			return pi < pj
		}
		return result[i].seq > result[j].seq
	})
	return result
}
