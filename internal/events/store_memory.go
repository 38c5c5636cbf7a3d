package events

import (
	"context"
	"sort"
	"sync"

	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

// InMemoryStore keeps events per case in insertion order. It backs unit tests
// and single-process development wiring.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.CaseID][]CaseEvent
	seq    int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.CaseID][]CaseEvent)}
}

func (s *InMemoryStore) Append(_ context.Context, event *CaseEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	event.Seq = s.seq
	s.events[event.CaseID] = append(s.events[event.CaseID], *event)
	return nil
}

func (s *InMemoryStore) ListByCase(_ context.Context, caseID id.CaseID) ([]CaseEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(caseID, nil), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, caseID id.CaseID, limit int) ([]CaseEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asc := s.sorted(caseID, nil)
	out := make([]CaseEvent, 0, len(asc))
	for i := len(asc) - 1; i >= 0; i-- {
		out = append(out, asc[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListByType(_ context.Context, caseID id.CaseID, eventType EventType) ([]CaseEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(caseID, func(e CaseEvent) bool { return e.Type == eventType }), nil
}

func (s *InMemoryStore) ListByActorRole(_ context.Context, caseID id.CaseID, role id.Role) ([]CaseEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(caseID, func(e CaseEvent) bool { return e.ActorRole == role }), nil
}

func (s *InMemoryStore) Latest(_ context.Context, caseID id.CaseID) (*CaseEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asc := s.sorted(caseID, nil)
	if len(asc) == 0 {
		return nil, sentinel.ErrNotFound
	}
	latest := asc[len(asc)-1]
	return &latest, nil
}

// sorted returns a filtered copy ordered by (RecordedAt, Seq) ascending.
func (s *InMemoryStore) sorted(caseID id.CaseID, keep func(CaseEvent) bool) []CaseEvent {
	src := s.events[caseID]
	out := make([]CaseEvent, 0, len(src))
	for _, e := range src {
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out
}
