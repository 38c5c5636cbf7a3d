package caselock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "caseflow/pkg/domain"
)

func TestMemoryLockerSerializesPerCase(t *testing.T) {
	locker := NewMemoryLocker()
	caseID := id.NewCaseID()

	var (
		mu      sync.Mutex
		holders int
		maxSeen int
	)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), caseID)
			require.NoError(t, err)
			mu.Lock()
			holders++
			if holders > maxSeen {
				maxSeen = holders
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "two goroutines held the same case lock at once")
}

func TestMemoryLockerIndependentCases(t *testing.T) {
	locker := NewMemoryLocker()

	releaseA, err := locker.Acquire(context.Background(), id.NewCaseID())
	require.NoError(t, err)
	defer releaseA()

	// A held lock on one case must not block another case.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := locker.Acquire(ctx, id.NewCaseID())
	require.NoError(t, err)
	releaseB()
}

func TestMemoryLockerHonorsContext(t *testing.T) {
	locker := NewMemoryLocker()
	caseID := id.NewCaseID()

	release, err := locker.Acquire(context.Background(), caseID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, caseID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The lock is still usable after the failed acquire.
	release()
	release2, err := locker.Acquire(context.Background(), caseID)
	require.NoError(t, err)
	release2()
}

func TestMemoryLockerReleaseIsReentrantSafe(t *testing.T) {
	locker := NewMemoryLocker()
	caseID := id.NewCaseID()

	for i := 0; i < 3; i++ {
		release, err := locker.Acquire(context.Background(), caseID)
		require.NoError(t, err)
		release()
	}
}
