// Package selection tracks which documents are chosen as generation inputs.
// The set is never persisted.
package selection

import "sync"

// Set is a concurrency-safe set of document ids that remembers toggle order.
type Set struct {
	mu    sync.RWMutex
	order []int64
	index map[int64]struct{}
}

// New returns an empty selection.
func New() *Set {
	return &Set{index: make(map[int64]struct{})}
}

// Toggle flips membership of id and reports whether it is now selected.
func (s *Set) Toggle(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; ok {
		delete(s.index, id)
		s.order = without(s.order, id)
		return false
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// IsSelected reports whether id is in the set.
func (s *Set) IsSelected(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// Reconcile drops every id that is not in current and returns the dropped ids.
func (s *Set) Reconcile(current map[int64]struct{}) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []int64
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := current[id]; ok {
			kept = append(kept, id)
			continue
		}
		delete(s.index, id)
		dropped = append(dropped, id)
	}
	s.order = kept
	return dropped
}

// Clear empties the set.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.index = make(map[int64]struct{})
}

// IDs returns the selected ids in the order they were selected.
func (s *Set) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of selected ids.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func without(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
