package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
	txcontext "caseflow/pkg/platform/tx"
)

// PostgresStore persists case events in the append-only case_events table.
// There is deliberately no UPDATE or DELETE statement in this file.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const eventColumns = `
	id, case_id, event_type, actor_id, actor_role, actor_name, payload,
	prev_status, new_status, prev_stage, new_stage, summary, recorded_at, seq
`

func (s *PostgresStore) Append(ctx context.Context, event *CaseEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	query := `
		INSERT INTO case_events (
			id, case_id, event_type, actor_id, actor_role, actor_name, payload,
			prev_status, new_status, prev_stage, new_stage, summary, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING seq
	`
	err = s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(event.ID),
		uuid.UUID(event.CaseID),
		string(event.Type),
		uuid.UUID(event.ActorID),
		string(event.ActorRole),
		event.ActorName,
		payload,
		event.PrevStatus,
		event.NewStatus,
		event.PrevStage,
		event.NewStage,
		event.Summary,
		event.RecordedAt,
	).Scan(&event.Seq)
	if err != nil {
		return fmt.Errorf("insert case event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCase(ctx context.Context, caseID id.CaseID) ([]CaseEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM case_events
		WHERE case_id = $1
		ORDER BY recorded_at ASC, seq ASC`
	return s.queryEvents(ctx, query, uuid.UUID(caseID))
}

func (s *PostgresStore) ListRecent(ctx context.Context, caseID id.CaseID, limit int) ([]CaseEvent, error) {
	if limit <= 0 {
		query := `SELECT ` + eventColumns + `
			FROM case_events
			WHERE case_id = $1
			ORDER BY recorded_at DESC, seq DESC`
		return s.queryEvents(ctx, query, uuid.UUID(caseID))
	}
	query := `SELECT ` + eventColumns + `
		FROM case_events
		WHERE case_id = $1
		ORDER BY recorded_at DESC, seq DESC
		LIMIT $2`
	return s.queryEvents(ctx, query, uuid.UUID(caseID), limit)
}

func (s *PostgresStore) ListByType(ctx context.Context, caseID id.CaseID, eventType EventType) ([]CaseEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM case_events
		WHERE case_id = $1 AND event_type = $2
		ORDER BY recorded_at ASC, seq ASC`
	return s.queryEvents(ctx, query, uuid.UUID(caseID), string(eventType))
}

func (s *PostgresStore) ListByActorRole(ctx context.Context, caseID id.CaseID, role id.Role) ([]CaseEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM case_events
		WHERE case_id = $1 AND actor_role = $2
		ORDER BY recorded_at ASC, seq ASC`
	return s.queryEvents(ctx, query, uuid.UUID(caseID), string(role))
}

func (s *PostgresStore) Latest(ctx context.Context, caseID id.CaseID) (*CaseEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM case_events
		WHERE case_id = $1
		ORDER BY recorded_at DESC, seq DESC
		LIMIT 1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(caseID))
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query latest event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]CaseEvent, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query case events: %w", err)
	}
	defer rows.Close()

	var out []CaseEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case event: %w", err)
		}
		out = append(out, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case events: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*CaseEvent, error) {
	var (
		event      CaseEvent
		eventID    uuid.UUID
		caseID     uuid.UUID
		actorID    uuid.UUID
		eventType  string
		actorRole  string
		rawPayload []byte
	)
	err := row.Scan(
		&eventID,
		&caseID,
		&eventType,
		&actorID,
		&actorRole,
		&event.ActorName,
		&rawPayload,
		&event.PrevStatus,
		&event.NewStatus,
		&event.PrevStage,
		&event.NewStage,
		&event.Summary,
		&event.RecordedAt,
		&event.Seq,
	)
	if err != nil {
		return nil, err
	}
	event.ID = id.EventID(eventID)
	event.CaseID = id.CaseID(caseID)
	event.ActorID = id.ActorID(actorID)
	event.Type = EventType(eventType)
	event.ActorRole = id.Role(actorRole)
	if len(rawPayload) > 0 {
		if err := json.Unmarshal(rawPayload, &event.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal event payload: %w", err)
		}
	}
	return &event, nil
}
