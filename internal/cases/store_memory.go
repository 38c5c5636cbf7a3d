package cases

import (
	"context"
	"sort"
	"sync"

	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

// InMemoryStore keeps case aggregates in a map. It honors the same version
// discipline as the postgres store so service tests exercise conflict paths.
type InMemoryStore struct {
	mu    sync.RWMutex
	cases map[id.CaseID]Case
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{cases: make(map[id.CaseID]Case)}
}

func (s *InMemoryStore) Create(_ context.Context, c *Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cases[c.ID]; exists {
		return sentinel.ErrConflict
	}
	c.Version = 1
	s.cases[c.ID] = *c
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, caseID id.CaseID) (*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *InMemoryStore) Update(_ context.Context, c *Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.cases[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != c.Version {
		return sentinel.ErrConflict
	}
	c.Version++
	s.cases[c.ID] = *c
	return nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status Status) ([]Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Case
	for _, c := range s.cases {
		if c.Status == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
