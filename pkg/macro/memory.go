package macro

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and one-off runs
type MemoryStore struct {
	mu     sync.RWMutex
	macros map[string]Macro
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{macros: make(map[string]Macro)}
}

// SaveMacro implements Store
func (s *MemoryStore) SaveMacro(_ context.Context, name string, steps []Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.macros[name] = Macro{
		Name:      name,
		Steps:     append([]Step(nil), steps...),
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// LoadMacros implements Store. Macros are sorted by name.
func (s *MemoryStore) LoadMacros(_ context.Context) ([]Macro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Macro, 0, len(s.macros))
	for _, m := range s.macros {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetMacro implements Store
func (s *MemoryStore) GetMacro(_ context.Context, name string) (*Macro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.macros[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMacroNotFound, name)
	}
	return &m, nil
}
