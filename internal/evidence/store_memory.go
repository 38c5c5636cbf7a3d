package evidence

import (
	"context"
	"sort"
	"sync"

	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

// InMemoryStore keeps evidence blocks in maps, for tests and local runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.BlockID]Block
	byCase map[id.CaseID][]id.BlockID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.BlockID]Block),
		byCase: make(map[id.CaseID][]id.BlockID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, b *Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[b.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existingID := range s.byCase[b.CaseID] {
		if s.byID[existingID].BlockIndex == b.BlockIndex {
			return sentinel.ErrConflict
		}
	}
	s.byID[b.ID] = *b
	s.byCase[b.CaseID] = append(s.byCase[b.CaseID], b.ID)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, blockID id.BlockID) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byID[blockID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &b, nil
}

func (s *InMemoryStore) Tail(_ context.Context, caseID id.CaseID) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tail *Block
	for _, blockID := range s.byCase[caseID] {
		b := s.byID[blockID]
		if tail == nil || b.BlockIndex > tail.BlockIndex {
			copied := b
			tail = &copied
		}
	}
	if tail == nil {
		return nil, sentinel.ErrNotFound
	}
	return tail, nil
}

func (s *InMemoryStore) ListByCase(_ context.Context, caseID id.CaseID) ([]Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Block, 0, len(s.byCase[caseID]))
	for _, blockID := range s.byCase[caseID] {
		out = append(out, s.byID[blockID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockIndex < out[j].BlockIndex })
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, blockID id.BlockID, status VerificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[blockID]
	if !ok {
		return sentinel.ErrNotFound
	}
	b.Status = status
	s.byID[blockID] = b
	return nil
}

func (s *InMemoryStore) CaseIDs(_ context.Context) ([]id.CaseID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.CaseID, 0, len(s.byCase))
	for caseID := range s.byCase {
		out = append(out, caseID)
	}
	return out, nil
}

// Corrupt overwrites stored block fields directly, bypassing the append-only
// discipline. Tests use it to simulate tampering at the storage layer.
func (s *InMemoryStore) Corrupt(blockID id.BlockID, mutate func(*Block)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[blockID]
	if !ok {
		return
	}
	mutate(&b)
	s.byID[blockID] = b
}
