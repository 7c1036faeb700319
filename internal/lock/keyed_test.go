package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSerializesSameKey(t *testing.T) {
	k := NewKeyed()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Acquire(context.Background(), "acct-1")
			require.NoError(t, err)
			defer release()

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
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "at most one holder per key at a time")
}

func TestAcquireDifferentKeysIndependent(t *testing.T) {
	k := NewKeyed()

	releaseA, err := k.Acquire(context.Background(), "acct-a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	releaseB, err := k.Acquire(ctx, "acct-b")
	require.NoError(t, err, "a held lock on one key must not block another key")
	releaseB()
}

func TestAcquireTimesOut(t *testing.T) {
	k := NewKeyed()

	release, err := k.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = k.Acquire(ctx, "acct-1")
	assert.ErrorIs(t, err, ErrTimeout)

	// After release the key is acquirable again.
	release()
	release2, err := k.Acquire(context.Background(), "acct-1")
	require.NoError(t, err)
	release2()
}
