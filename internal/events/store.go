package events

import (
	"context"

	id "caseflow/pkg/domain"
)

// Store persists case events. Implementations must be append-only: nothing in
// this interface can modify or remove a stored event.
//
// Ordering rule for every List method: RecordedAt ascending, ties broken by
// insertion sequence. ListRecent is the same ordering reversed.
type Store interface {
	// Append persists the event and assigns its insertion sequence.
	Append(ctx context.Context, event *CaseEvent) error
	ListByCase(ctx context.Context, caseID id.CaseID) ([]CaseEvent, error)
	ListRecent(ctx context.Context, caseID id.CaseID, limit int) ([]CaseEvent, error)
	ListByType(ctx context.Context, caseID id.CaseID, eventType EventType) ([]CaseEvent, error)
	ListByActorRole(ctx context.Context, caseID id.CaseID, role id.Role) ([]CaseEvent, error)
	// Latest returns the most recent event or sentinel.ErrNotFound.
	Latest(ctx context.Context, caseID id.CaseID) (*CaseEvent, error)
}
