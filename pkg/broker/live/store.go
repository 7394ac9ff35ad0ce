package live

import "sync"

// FillStore remembers which broker fills were already handed to the engine.
type FillStore interface {
	Seen(fillId string) (bool, error)
	Remember(fillIds ...string) error
}

type MemoryFillStore struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewMemoryFillStore() *MemoryFillStore {
	return &MemoryFillStore{ids: make(map[string]struct{})}
}

func (s *MemoryFillStore) Seen(fillId string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[fillId]
	return ok, nil
}

func (s *MemoryFillStore) Remember(fillIds ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range fillIds {
		s.ids[id] = struct{}{}
	}
	return nil
}
