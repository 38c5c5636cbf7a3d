package evidence

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

// PostgresStore persists evidence blocks in the evidence_blocks table. The
// unique (case_id, block_index) and block_hash constraints are the last line
// of defense for chain shape; the per-case lock should make them unreachable.
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

const blockColumns = `
	id, case_id, title, description, evidence_type, file_hash, block_hash,
	previous_block_hash, block_index, uploader_id, uploader_role, status,
	file_name, file_size, content_type, uploaded_at
`

func (s *PostgresStore) Insert(ctx context.Context, b *Block) error {
	query := `
		INSERT INTO evidence_blocks (
			id, case_id, title, description, evidence_type, file_hash, block_hash,
			previous_block_hash, block_index, uploader_id, uploader_role, status,
			file_name, file_size, content_type, uploaded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(b.ID),
		uuid.UUID(b.CaseID),
		b.Title,
		b.Description,
		string(b.EvidenceType),
		b.FileHash,
		b.BlockHash,
		b.PreviousBlockHash,
		b.BlockIndex,
		uuid.UUID(b.UploaderID),
		string(b.UploaderRole),
		string(b.Status),
		b.FileName,
		b.FileSize,
		b.ContentType,
		b.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert evidence block: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, blockID id.BlockID) (*Block, error) {
	query := `SELECT ` + blockColumns + ` FROM evidence_blocks WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(blockID))
	b, err := scanBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query evidence block: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Tail(ctx context.Context, caseID id.CaseID) (*Block, error) {
	query := `SELECT ` + blockColumns + `
		FROM evidence_blocks
		WHERE case_id = $1
		ORDER BY block_index DESC
		LIMIT 1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(caseID))
	b, err := scanBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("query chain tail: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListByCase(ctx context.Context, caseID id.CaseID) ([]Block, error) {
	query := `SELECT ` + blockColumns + `
		FROM evidence_blocks
		WHERE case_id = $1
		ORDER BY block_index ASC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("query evidence blocks: %w", err)
	}
	defer rows.Close()

	var out []Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence block: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence blocks: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, blockID id.BlockID, status VerificationStatus) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE evidence_blocks SET status = $2 WHERE id = $1`,
		uuid.UUID(blockID), string(status),
	)
	if err != nil {
		return fmt.Errorf("update block status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update block status rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CaseIDs(ctx context.Context) ([]id.CaseID, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT DISTINCT case_id FROM evidence_blocks`)
	if err != nil {
		return nil, fmt.Errorf("query chain case ids: %w", err)
	}
	defer rows.Close()

	var out []id.CaseID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan case id: %w", err)
		}
		out = append(out, id.CaseID(u))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case ids: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*Block, error) {
	var (
		b            Block
		blockID      uuid.UUID
		caseID       uuid.UUID
		evidenceType string
		uploaderID   uuid.UUID
		uploaderRole string
		status       string
	)
	err := row.Scan(
		&blockID,
		&caseID,
		&b.Title,
		&b.Description,
		&evidenceType,
		&b.FileHash,
		&b.BlockHash,
		&b.PreviousBlockHash,
		&b.BlockIndex,
		&uploaderID,
		&uploaderRole,
		&status,
		&b.FileName,
		&b.FileSize,
		&b.ContentType,
		&b.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	b.ID = id.BlockID(blockID)
	b.CaseID = id.CaseID(caseID)
	b.EvidenceType = EvidenceType(evidenceType)
	b.UploaderID = id.ActorID(uploaderID)
	b.UploaderRole = id.Role(uploaderRole)
	b.Status = VerificationStatus(status)
	return &b, nil
}
