package cases

import (
	"context"

	id "caseflow/pkg/domain"
)

// Store persists the case aggregate. Implementations return sentinel errors
// for infrastructure facts; guard logic lives in the service.
type Store interface {
	Create(ctx context.Context, c *Case) error
	// Get loads a case or returns sentinel.ErrNotFound.
	Get(ctx context.Context, caseID id.CaseID) (*Case, error)
	// Update persists the aggregate, bumping Version. Returns
	// sentinel.ErrConflict when the stored version no longer matches,
	// meaning another writer got between load and save.
	Update(ctx context.Context, c *Case) error
	// ListByStatus returns cases in a given status, newest first. Used for
	// the judge-assignment pool among others.
	ListByStatus(ctx context.Context, status Status) ([]Case, error)
}
