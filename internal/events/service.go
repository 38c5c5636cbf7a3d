package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caseflow/internal/events/metrics"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/sentinel"
)

// Log is the append-only record of everything the state machine and evidence
// ledger did. It stamps identity and time on append and never rejects a
// well-formed event; whether the append is durable is the store's problem.
type Log struct {
	store   Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewLog builds the event log. metrics may be nil in tests.
func NewLog(store Store, m *metrics.Metrics) *Log {
	return &Log{store: store, metrics: m, now: time.Now}
}

// WithClock overrides the log's clock. Tests use this to pin timestamps.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Append persists the event, assigning an ID and timestamp when absent.
// The caller is expected to run inside the command transaction so the event
// commits atomically with the state change that produced it.
func (l *Log) Append(ctx context.Context, event *CaseEvent) (*CaseEvent, error) {
	if !event.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	if event.RecordedAt.IsZero() {
		event.RecordedAt = l.now()
	}
	if err := l.store.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("append case event: %w", err)
	}
	if l.metrics != nil {
		l.metrics.RecordAppend(string(event.Type))
	}
	return event, nil
}

// TimelineFor returns a case's events oldest to newest, for timeline display.
func (l *Log) TimelineFor(ctx context.Context, caseID id.CaseID) ([]CaseEvent, error) {
	return l.store.ListByCase(ctx, caseID)
}

// RecentFor returns a case's events newest to oldest. limit <= 0 means all.
func (l *Log) RecentFor(ctx context.Context, caseID id.CaseID, limit int) ([]CaseEvent, error) {
	return l.store.ListRecent(ctx, caseID, limit)
}

// FilterByType narrows the timeline to one event type, oldest to newest.
func (l *Log) FilterByType(ctx context.Context, caseID id.CaseID, eventType EventType) ([]CaseEvent, error) {
	if !eventType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown event type %q", eventType)
	}
	return l.store.ListByType(ctx, caseID, eventType)
}

// FilterByActorRole narrows the timeline to one actor role, oldest to newest.
func (l *Log) FilterByActorRole(ctx context.Context, caseID id.CaseID, role id.Role) ([]CaseEvent, error) {
	return l.store.ListByActorRole(ctx, caseID, role)
}

// LatestFor returns the most recent event, or nil when the case has none.
func (l *Log) LatestFor(ctx context.Context, caseID id.CaseID) (*CaseEvent, error) {
	event, err := l.store.Latest(ctx, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest case event: %w", err)
	}
	return event, nil
}
