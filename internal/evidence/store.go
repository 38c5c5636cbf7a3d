package evidence

import (
	"context"

	id "caseflow/pkg/domain"
)

// Store persists evidence blocks. Blocks are append-only; the single mutable
// field is Status, updated only through UpdateStatus.
type Store interface {
	// Insert persists a new block. Returns sentinel.ErrConflict when the
	// (case, index) slot or the block hash is already taken.
	Insert(ctx context.Context, b *Block) error

	// Get returns one block by id, sentinel.ErrNotFound when absent.
	Get(ctx context.Context, blockID id.BlockID) (*Block, error)

	// Tail returns the case's highest-index block, sentinel.ErrNotFound for
	// an empty chain.
	Tail(ctx context.Context, caseID id.CaseID) (*Block, error)

	// ListByCase returns the case's blocks in ascending block index.
	ListByCase(ctx context.Context, caseID id.CaseID) ([]Block, error)

	// UpdateStatus persists a verification verdict for one block.
	UpdateStatus(ctx context.Context, blockID id.BlockID, status VerificationStatus) error

	// CaseIDs returns every case that has at least one block. The integrity
	// sweep iterates this.
	CaseIDs(ctx context.Context) ([]id.CaseID, error)
}
