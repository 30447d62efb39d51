package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Concurrent read-modify-write under the lock must equal sequential execution.
func TestConcurrentBalanceSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(1000, 100000).Draw(t, "initial")
		amounts := rapid.SliceOfN(rapid.Int64Range(-500, 500), 2, 20).Draw(t, "amounts")
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")

		expected := initial
		for _, a := range amounts {
			expected += a
		}

		ul := NewUserLock(0)
		balance := initial

		var wg sync.WaitGroup
		wg.Add(len(amounts))
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				if err := ul.Lock(context.Background(), userID); err != nil {
					return
				}
				balance += amount
				ul.Unlock(userID)
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch: expected %d, got %d", expected, balance)
		}
		if ul.Len() != 0 {
			t.Fatalf("lock entries leaked: %d", ul.Len())
		}
	})
}

// Pair locking in any argument order must never deadlock.
func TestLockPairNoDeadlockProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(1, 50).Draw(t, "a")
		b := rapid.Int64Range(1, 50).Draw(t, "b")
		n := rapid.IntRange(2, 10).Draw(t, "n")

		ul := NewUserLock(2 * time.Second)
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(swap bool) {
				defer wg.Done()
				x, y := a, b
				if swap {
					x, y = y, x
				}
				unlock, err := ul.LockPair(context.Background(), x, y)
				if err != nil {
					errs <- err
					return
				}
				unlock()
			}(i%2 == 0)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("pair lock failed: %v", err)
		}
	})
}

func TestUserLock_Timeout(t *testing.T) {
	ul := NewUserLock(20 * time.Millisecond)
	require.NoError(t, ul.Lock(context.Background(), 1))
	assert.Equal(t, 1, ul.Len())

	err := ul.Lock(context.Background(), 1)
	assert.ErrorIs(t, err, ErrLockTimeout)

	ul.Unlock(1)
	assert.Equal(t, 0, ul.Len())
	require.NoError(t, ul.Lock(context.Background(), 1))
	ul.Unlock(1)
}

func TestUserLock_ContextCancel(t *testing.T) {
	ul := NewUserLock(0)
	require.NoError(t, ul.Lock(context.Background(), 5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ul.Lock(ctx, 5), context.Canceled)
	assert.Equal(t, 1, ul.Len(), "a cancelled waiter drops its reference")

	ul.Unlock(5)
	require.NoError(t, ul.Lock(context.Background(), 5))
	ul.Unlock(5)
}

func TestUserLock_UnlockWithoutLock(t *testing.T) {
	ul := NewUserLock(0)
	ul.Unlock(42)
	assert.Equal(t, 0, ul.Len())
}
