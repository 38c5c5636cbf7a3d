package cases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
	txcontext "caseflow/pkg/platform/tx"
)

// PostgresStore persists case aggregates in the cases table. Updates use an
// optimistic version check; the per-case lock makes conflicts rare but the
// check keeps a lost lock from silently clobbering a newer row.
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

const caseColumns = `
	id, title, status, current_stage, assigned_judge, lawyer, client,
	draft_status, draft_content, summons_delivered, bsa634_certified,
	held_from, created_at, updated_at, version
`

func (s *PostgresStore) Create(ctx context.Context, c *Case) error {
	c.Version = 1
	query := `
		INSERT INTO cases (
			id, title, status, current_stage, assigned_judge, lawyer, client,
			draft_status, draft_content, summons_delivered, bsa634_certified,
			held_from, created_at, updated_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		c.Title,
		string(c.Status),
		int(c.CurrentStage),
		actorOrNil(c.AssignedJudge),
		actorOrNil(c.Lawyer),
		actorOrNil(c.Client),
		string(c.DraftStatus),
		c.DraftContent,
		c.SummonsDelivered,
		c.BSA634Certified,
		statusOrNil(c.HeldFrom),
		c.CreatedAt,
		c.UpdatedAt,
		c.Version,
	)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, caseID id.CaseID) (*Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(caseID))
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query case: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Update(ctx context.Context, c *Case) error {
	query := `
		UPDATE cases SET
			title = $2, status = $3, current_stage = $4, assigned_judge = $5,
			lawyer = $6, client = $7, draft_status = $8, draft_content = $9,
			summons_delivered = $10, bsa634_certified = $11, held_from = $12,
			updated_at = $13, version = version + 1
		WHERE id = $1 AND version = $14
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		c.Title,
		string(c.Status),
		int(c.CurrentStage),
		actorOrNil(c.AssignedJudge),
		actorOrNil(c.Lawyer),
		actorOrNil(c.Client),
		string(c.DraftStatus),
		c.DraftContent,
		c.SummonsDelivered,
		c.BSA634Certified,
		statusOrNil(c.HeldFrom),
		c.UpdatedAt,
		c.Version,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update case rows affected: %w", err)
	}
	if affected == 0 {
		// Either the case vanished or the version moved underneath us.
		if _, getErr := s.Get(ctx, c.ID); errors.Is(getErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	c.Version++
	return nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status) ([]Case, error) {
	query := `SELECT ` + caseColumns + `
		FROM cases
		WHERE status = $1
		ORDER BY created_at DESC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("query cases by status: %w", err)
	}
	defer rows.Close()

	var out []Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*Case, error) {
	var (
		c        Case
		caseID   uuid.UUID
		status   string
		stage    int
		judge    *uuid.UUID
		lawyer   *uuid.UUID
		client   *uuid.UUID
		draft    string
		heldFrom *string
	)
	err := row.Scan(
		&caseID,
		&c.Title,
		&status,
		&stage,
		&judge,
		&lawyer,
		&client,
		&draft,
		&c.DraftContent,
		&c.SummonsDelivered,
		&c.BSA634Certified,
		&heldFrom,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.Version,
	)
	if err != nil {
		return nil, err
	}
	c.ID = id.CaseID(caseID)
	c.Status = Status(status)
	c.CurrentStage = Stage(stage)
	c.DraftStatus = DraftStatus(draft)
	if judge != nil {
		a := id.ActorID(*judge)
		c.AssignedJudge = &a
	}
	if lawyer != nil {
		a := id.ActorID(*lawyer)
		c.Lawyer = &a
	}
	if client != nil {
		a := id.ActorID(*client)
		c.Client = &a
	}
	if heldFrom != nil {
		st := Status(*heldFrom)
		c.HeldFrom = &st
	}
	return &c, nil
}

func actorOrNil(a *id.ActorID) *uuid.UUID {
	if a == nil {
		return nil
	}
	u := uuid.UUID(*a)
	return &u
}

func statusOrNil(s *Status) *string {
	if s == nil {
		return nil
	}
	str := string(*s)
	return &str
}
