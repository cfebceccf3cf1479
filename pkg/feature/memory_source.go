package feature

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemorySource is an in-memory implementation of the Source interface.
// It's useful for testing and simple applications.
type MemorySource struct {
	states map[Feature]*State
	mu     sync.RWMutex
}

// NewMemorySource creates a new in-memory source seeded with the given states.
func NewMemorySource(initial ...*State) (*MemorySource, error) {
	source := &MemorySource{
		states: make(map[Feature]*State),
	}

	for _, state := range initial {
		if state == nil {
			continue
		}
		if err := ValidateState(state); err != nil {
			return nil, err
		}
		source.states[state.Feature()] = state.Copy()
	}

	return source, nil
}

// Read returns a copy of the stored state, or nil if none exists.
func (m *MemorySource) Read(ctx context.Context, f Feature) (*State, error) {
	m.mu.RLock()
	state, exists := m.states[f]
	m.mu.RUnlock()

	if !exists {
		return nil, nil
	}

	// Return a copy to prevent external modification
	return state.Copy(), nil
}

// Write stores a copy of the state, replacing any previous one.
func (m *MemorySource) Write(ctx context.Context, s *State) error {
	if err := ValidateState(s); err != nil {
		return err
	}

	stored := s.Copy()

	m.mu.Lock()
	m.states[stored.Feature()] = stored
	m.mu.Unlock()

	return nil
}

// Delete removes the stored state so the feature falls back to its default.
func (m *MemorySource) Delete(ctx context.Context, f Feature) error {
	m.mu.Lock()
	delete(m.states, f)
	m.mu.Unlock()
	return nil
}

// Features lists the features with a stored state, sorted by name.
func (m *MemorySource) Features(ctx context.Context) ([]Feature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Sorted(maps.Keys(m.states)), nil
}
