package xkeylock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestLocker(t *testing.T, opts ...Option) Locker {
	t.Helper()
	kl, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kl.Close() })
	return kl
}

func TestAcquire_NilContext_Panics(t *testing.T) {
	kl := newTestLocker(t)

	assert.PanicsWithValue(t, "xkeylock: nil Context", func() {
		kl.Acquire(nil, "key1") //nolint:errcheck,staticcheck // 测试 nil ctx panic 行为
	})
}

func TestAcquire_EmptyKey_ReturnsError(t *testing.T) {
	kl := newTestLocker(t)

	_, err := kl.Acquire(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = kl.TryAcquire("")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestHandle_Unlock_Idempotent(t *testing.T) {
	kl := newTestLocker(t)

	h, err := kl.Acquire(context.Background(), "key1")
	require.NoError(t, err)
	assert.Equal(t, "key1", h.Key())

	assert.NoError(t, h.Unlock())
	assert.ErrorIs(t, h.Unlock(), ErrLockNotHeld)
	assert.Equal(t, 0, kl.Len())
}

func TestTryAcquire_Occupied_ReturnsNilNil(t *testing.T) {
	kl := newTestLocker(t)

	h1, err := kl.TryAcquire("key1")
	require.NoError(t, err)
	require.NotNil(t, h1)

	h2, err := kl.TryAcquire("key1")
	assert.NoError(t, err)
	assert.Nil(t, h2)

	h3, err := kl.TryAcquire("key2")
	require.NoError(t, err)
	require.NotNil(t, h3)

	require.NoError(t, h1.Unlock())
	h4, err := kl.TryAcquire("key1")
	require.NoError(t, err)
	require.NotNil(t, h4)

	require.NoError(t, h3.Unlock())
	require.NoError(t, h4.Unlock())
}

func TestAcquire_ContextTimeout_ReturnsDeadlineExceeded(t *testing.T) {
	kl := newTestLocker(t)

	h, err := kl.Acquire(context.Background(), "key1")
	require.NoError(t, err)
	defer func() { _ = h.Unlock() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = kl.Acquire(ctx, "key1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// 等待者退出后引用计数回落，只剩持有者
	assert.Equal(t, 1, kl.Len())
}

func TestAcquire_UnblocksAfterRelease(t *testing.T) {
	kl := newTestLocker(t)

	h, err := kl.Acquire(context.Background(), "key1")
	require.NoError(t, err)

	acquired := make(chan Handle, 1)
	go func() {
		h2, err := kl.Acquire(context.Background(), "key1")
		if err == nil {
			acquired <- h2
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, h.Unlock())

	select {
	case h2 := <-acquired:
		require.NoError(t, h2.Unlock())
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken after release")
	}
}

func TestClose_WakesWaiters(t *testing.T) {
	kl, err := New()
	require.NoError(t, err)

	h, err := kl.Acquire(context.Background(), "key1")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := kl.Acquire(context.Background(), "key1")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, kl.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Close")
	}

	// 已持有的锁不受 Close 影响
	assert.NoError(t, h.Unlock())
	assert.ErrorIs(t, kl.Close(), ErrClosed)

	_, err = kl.TryAcquire("key2")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWithMaxKeys_Exceeded(t *testing.T) {
	kl := newTestLocker(t, WithMaxKeys(1))

	h, err := kl.TryAcquire("a")
	require.NoError(t, err)

	_, err = kl.TryAcquire("b")
	assert.ErrorIs(t, err, ErrMaxKeysExceeded)

	require.NoError(t, h.Unlock())
	h, err = kl.TryAcquire("b")
	require.NoError(t, err)
	require.NoError(t, h.Unlock())
}

func TestNew_InvalidShardCount(t *testing.T) {
	for _, n := range []int{0, -1, 3, maxShardCount * 2} {
		_, err := New(WithShardCount(n))
		assert.ErrorIs(t, err, ErrInvalidShardCount, "n=%d", n)
	}
	kl, err := New(WithShardCount(1), nil)
	require.NoError(t, err)
	require.NoError(t, kl.Close())
}

func TestAcquire_ConcurrentMutualExclusion(t *testing.T) {
	kl := newTestLocker(t)

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := kl.Acquire(context.Background(), "shared")
			if err != nil {
				return
			}
			n := inside.Add(1)
			for {
				cur := maxSeen.Load()
				if n <= cur || maxSeen.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			_ = h.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, kl.Len())
}
