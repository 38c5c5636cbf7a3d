package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about resources, not guard failures:
// - ErrNotFound: case, event, or block does not exist in the store
// - ErrConflict: write collided with a concurrent writer (duplicate index/hash)
// - ErrInvalidState: row is in a shape the store cannot act on
// - ErrUnavailable: backing service temporarily unreachable
//
// Transition guard failures belong to pkg/domain-errors, not here.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
