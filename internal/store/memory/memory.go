package memory

import (
	"context"
	"sync"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
)

type Store struct {
	mu    sync.RWMutex
	state *domain.RotationState
	saves int
}

func New() *Store {
	return &Store{}
}

// NewSeeded returns a store that already holds state, as if a previous
// process had drawn it.
func NewSeeded(state domain.RotationState) *Store {
	cloned := store.CloneState(state)
	return &Store{state: &cloned}
}

func (s *Store) Load(_ context.Context) (*domain.RotationState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, false, nil
	}
	cloned := store.CloneState(*s.state)
	return &cloned, true, nil
}

func (s *Store) Save(_ context.Context, state domain.RotationState) error {
	if state.SelectedAt <= 0 {
		return store.ErrInvalidState
	}
	cloned := store.CloneState(state)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &cloned
	s.saves++
	return nil
}

// Saves reports how many writes the store has accepted.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
}
