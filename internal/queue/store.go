package queue

import "sync"

// Entry pairs a job id with its current record.
type Entry struct {
	ID    string
	State State
}

// Store is the in-memory job registry. Writes always replace the whole
// record, so readers never observe a torn intermediate state. Reads and
// writes are safe to interleave without external locking.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]State
	order []string
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]State)}
}

// Get returns the current record for id.
func (s *Store) Get(id string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.jobs[id]
	return state, ok
}

// Set inserts or fully replaces the record for id.
func (s *Store) Set(id string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[id]; !exists {
		s.order = append(s.order, id)
	}
	s.jobs[id] = state
}

// Delete removes the record for id. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[id]; !exists {
		return
	}
	delete(s.jobs, id)
	s.removeFromOrder(id)
}

// Update runs next with the current record under the write lock and installs
// the returned record; returning nil deletes the record instead. Like
// Replace, it never creates records for unknown ids. Callers use it to
// dispatch on the live state without a read-then-write window.
func (s *Store) Update(id string, next func(prev State) State) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	replacement := next(prev)
	if replacement == nil {
		delete(s.jobs, id)
		s.removeFromOrder(id)
		return prev, true
	}
	s.jobs[id] = replacement
	return prev, true
}

func (s *Store) removeFromOrder(id string) {
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Replace atomically swaps the record for id with the one built by next,
// but only if the record is still present. It returns the previous record.
// This is the takeover point that defends against a queued job being
// deleted by cancellation just before its turn.
func (s *Store) Replace(id string, next func(prev State) State) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	s.jobs[id] = next(prev)
	return prev, true
}

// List returns an insertion-ordered snapshot of all records.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		if state, ok := s.jobs[id]; ok {
			entries = append(entries, Entry{ID: id, State: state})
		}
	}
	return entries
}
