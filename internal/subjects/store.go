// Package subjects tracks the last-known state per subject. Conflict
// resolution is last-write-wins by arrival order: the most recently
// delivered event overwrites, even when its embedded timestamp is older.
package subjects

import (
	"sort"
	"sync"

	"classwatch/internal/model"
)

type Store struct {
	mu        sync.RWMutex
	bySubject map[string]model.SubjectState
}

func NewStore() *Store {
	return &Store{bySubject: make(map[string]model.SubjectState)}
}

func (s *Store) Apply(ev model.ActivityEvent) {
	if ev.SubjectID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.bySubject[ev.SubjectID]
	state.SubjectID = ev.SubjectID
	state.Status = ev.Status
	state.Confidence = ev.Confidence
	state.LastSeen = ev.Timestamp
	s.bySubject[ev.SubjectID] = state
}

// SetName attaches a roster display name without touching activity state.
func (s *Store) SetName(subjectID, name string) {
	if subjectID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.bySubject[subjectID]
	if !ok {
		state = model.SubjectState{SubjectID: subjectID, Status: model.StatusUnknown}
	}
	state.Name = name
	s.bySubject[subjectID] = state
}

func (s *Store) Get(subjectID string) (model.SubjectState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.bySubject[subjectID]
	return state, ok
}

func (s *Store) All() []model.SubjectState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SubjectState, 0, len(s.bySubject))
	for _, state := range s.bySubject {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySubject)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySubject = make(map[string]model.SubjectState)
}
