package docsync_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklens/doccached/internal/docsync"
)

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	locker := docsync.NewMemoryLocker(time.Minute)
	ctx := context.Background()

	token, acquired, err := locker.Acquire(ctx, "ns1")
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.NotEmpty(t, token)

	_, acquired, err = locker.Acquire(ctx, "ns1")
	require.NoError(t, err)
	assert.False(t, acquired, "held lease must not be re-acquired")

	require.NoError(t, locker.Release(ctx, "ns1", token))

	_, acquired, err = locker.Acquire(ctx, "ns1")
	require.NoError(t, err)
	assert.True(t, acquired, "released lease must be re-acquirable")
}

func TestMemoryLocker_KeysAreIndependent(t *testing.T) {
	locker := docsync.NewMemoryLocker(time.Minute)
	ctx := context.Background()

	_, acquired, err := locker.Acquire(ctx, "ns1")
	require.NoError(t, err)
	require.True(t, acquired)

	_, acquired, err = locker.Acquire(ctx, "ns2")
	require.NoError(t, err)
	assert.True(t, acquired, "lease on one namespace must not block another")
}

func TestMemoryLocker_LeaseExpires(t *testing.T) {
	locker := docsync.NewMemoryLocker(10 * time.Millisecond)
	ctx := context.Background()

	_, acquired, err := locker.Acquire(ctx, "ns1")
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(20 * time.Millisecond)

	_, acquired, err = locker.Acquire(ctx, "ns1")
	require.NoError(t, err)
	assert.True(t, acquired, "expired lease must be claimable by a new holder")
}

func TestMemoryLocker_ReleaseUnheldIsNoop(t *testing.T) {
	locker := docsync.NewMemoryLocker(time.Minute)
	assert.NoError(t, locker.Release(context.Background(), "never-held", "any-token"))
}

// TestMemoryLocker_StaleTokenCannotReleaseSuccessor covers the lease
// handover race: a holder that outlives its TTL must not free the lease
// of whoever claimed the slot after it expired.
func TestMemoryLocker_StaleTokenCannotReleaseSuccessor(t *testing.T) {
	locker := docsync.NewMemoryLocker(10 * time.Millisecond)
	ctx := context.Background()

	staleToken, acquired, err := locker.Acquire(ctx, "ns1")
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(20 * time.Millisecond)

	successorToken, acquired, err := locker.Acquire(ctx, "ns1")
	require.NoError(t, err)
	require.True(t, acquired)
	require.NotEqual(t, staleToken, successorToken)

	// The first holder finishes late and releases; the successor's lease
	// must survive it.
	require.NoError(t, locker.Release(ctx, "ns1", staleToken))

	_, acquired, err = locker.Acquire(ctx, "ns1")
	require.NoError(t, err)
	assert.False(t, acquired, "successor lease must survive a stale release")

	// The rightful holder can still release.
	require.NoError(t, locker.Release(ctx, "ns1", successorToken))
	_, acquired, err = locker.Acquire(ctx, "ns1")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryLocker_SingleWinnerUnderContention(t *testing.T) {
	locker := docsync.NewMemoryLocker(time.Minute)
	ctx := context.Background()

	const callers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, acquired, err := locker.Acquire(ctx, "ns1")
			assert.NoError(t, err)
			if acquired {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one caller may hold the lease")
}

func TestMemoryLocker_CancelledContext(t *testing.T) {
	locker := docsync.NewMemoryLocker(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := locker.Acquire(ctx, "ns1")
	assert.ErrorIs(t, err, context.Canceled)
}
