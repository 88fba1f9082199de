package xstampede

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/itemcache/pkg/distributed/xdlock"
	"github.com/omeyang/itemcache/pkg/observability/xlog"
	"github.com/omeyang/itemcache/pkg/observability/xmetrics"
	"github.com/omeyang/itemcache/pkg/storage/xcache"
)

type testItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// harness 组合 miniredis 存储、计数锁与计数回源函数。
type harness struct {
	mr     *miniredis.Miniredis
	store  xcache.Redis
	locker *countingLocker
	loads  atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := xcache.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	local, err := xdlock.NewLocal()
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close(context.Background()) })

	return &harness{mr: mr, store: store, locker: &countingLocker{Locker: local}}
}

// loader 返回计数回源函数，每次回源耗时 delay，值的 Name 带上回源序号。
func (h *harness) loader(delay time.Duration) Loader[int, testItem] {
	return func(ctx context.Context, id int) (testItem, error) {
		n := h.loads.Add(1)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return testItem{}, ctx.Err()
			}
		}
		return testItem{ID: id, Name: fmt.Sprintf("v%d", n)}, nil
	}
}

func newTestController(t *testing.T, h *harness, policy Policy, load Loader[int, testItem], opts ...Option) *Controller[int, testItem] {
	t.Helper()
	logger, cleanup, err := xlog.New().SetOutput(io.Discard).SetLevel(xlog.LevelDebug).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })

	opts = append([]Option{WithLogger(logger), WithKeyPrefix("itemCache")}, opts...)
	c, err := New[int, testItem](h.store, h.locker, load, policy, opts...)
	require.NoError(t, err)
	return c
}

// cached 读取缓存中的原始条目。
func (h *harness) cached(t *testing.T, key string) (entry[testItem], bool) {
	t.Helper()
	data, err := h.store.Get(context.Background(), key)
	if errors.Is(err, xcache.ErrCacheMiss) {
		return entry[testItem]{}, false
	}
	require.NoError(t, err)
	e, err := decodeEntry[testItem](data)
	require.NoError(t, err)
	return e, true
}

// =============================================================================
// 锁与存储替身
// =============================================================================

// countingLocker 统计获取与释放次数，用于验证每次获取恰好释放一次。
type countingLocker struct {
	xdlock.Locker
	acquired atomic.Int32
	released atomic.Int32
	failWith error
}

func (l *countingLocker) TryAcquire(ctx context.Context, name string, wait, lease time.Duration) (xdlock.LockHandle, error) {
	if l.failWith != nil {
		return nil, l.failWith
	}
	h, err := l.Locker.TryAcquire(ctx, name, wait, lease)
	if err != nil || h == nil {
		return h, err
	}
	l.acquired.Add(1)
	return &countingHandle{LockHandle: h, locker: l}, nil
}

type countingHandle struct {
	xdlock.LockHandle
	locker *countingLocker
}

func (h *countingHandle) Release(ctx context.Context) error {
	h.locker.released.Add(1)
	return h.LockHandle.Release(ctx)
}

// failingStore 读取总是失败，写入记录调用次数。
type failingStore struct {
	xcache.Store
	sets atomic.Int32
}

func (s *failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (s *failingStore) GetWithTTL(context.Context, string) ([]byte, time.Duration, error) {
	return nil, 0, errors.New("connection refused")
}

func (s *failingStore) Set(context.Context, string, []byte, time.Duration) error {
	s.sets.Add(1)
	return nil
}

// recordingObserver 记录每个跨度的选项与结果。
type recordingObserver struct {
	mu      sync.Mutex
	opts    []xmetrics.SpanOptions
	results []xmetrics.Result
}

func (o *recordingObserver) Start(ctx context.Context, opts xmetrics.SpanOptions) (context.Context, xmetrics.Span) {
	o.mu.Lock()
	o.opts = append(o.opts, opts)
	o.mu.Unlock()
	return ctx, recordingSpan{o}
}

type recordingSpan struct{ o *recordingObserver }

func (s recordingSpan) End(result xmetrics.Result) {
	s.o.mu.Lock()
	s.o.results = append(s.o.results, result)
	s.o.mu.Unlock()
}

// runConcurrent 同时发起 n 次 Get，返回各自结果。
func runConcurrent(c *Controller[int, testItem], n, id int) ([]testItem, []error) {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		items = make([]testItem, n)
		errs  = make([]error, n)
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			items[i], errs[i] = c.Get(context.Background(), id)
		}()
	}
	close(start)
	wg.Wait()
	return items, errs
}

func discardLogger(t *testing.T) xlog.Logger {
	t.Helper()
	logger, cleanup, err := xlog.New().SetOutput(io.Discard).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	return logger
}
