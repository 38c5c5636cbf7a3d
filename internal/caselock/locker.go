// Package caselock provides per-case mutual exclusion. Every state-machine
// transition and every evidence-chain append runs inside a case's exclusive
// scope; operations on different cases never contend.
package caselock

import (
	"context"

	id "caseflow/pkg/domain"
)

// Locker serializes writers per case. Acquire blocks until the case's scope
// is free or ctx is done; the returned release function must be called
// exactly once.
type Locker interface {
	Acquire(ctx context.Context, caseID id.CaseID) (release func(), err error)
}
