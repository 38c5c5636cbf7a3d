package caselock

import (
	"context"
	"sync"

	id "caseflow/pkg/domain"
)

// MemoryLocker is a keyed mutex for single-process deployments and tests.
// Entries are reference counted so the map does not grow with case history.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[id.CaseID]*entry
}

type entry struct {
	ch   chan struct{} // capacity 1: holding the token means holding the lock
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[id.CaseID]*entry)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, caseID id.CaseID) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[caseID]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[caseID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() {
			<-e.ch
			l.release(caseID, e)
		}, nil
	case <-ctx.Done():
		l.release(caseID, e)
		return nil, ctx.Err()
	}
}

func (l *MemoryLocker) release(caseID id.CaseID, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, caseID)
	}
}
