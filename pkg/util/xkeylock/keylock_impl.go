package xkeylock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// keyLockImpl 是 Locker 的分片实现。
type keyLockImpl struct {
	shards   []shard
	mask     uint64
	maxKeys  int
	closed   atomic.Bool
	keyCount atomic.Int64
	done     chan struct{}
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// lockEntry 表示一个 key 的锁条目。
// ch 是容量为 1 的 channel：发送成功即持有锁，接收即释放锁。
type lockEntry struct {
	ch chan struct{}
	// refcnt 为持有者与等待者数量，只在分片锁内修改，归零时删除条目。
	refcnt int
}

type handle struct {
	kl    *keyLockImpl
	key   string
	entry *lockEntry
	done  atomic.Bool
}

func newKeyLockImpl(o *options) *keyLockImpl {
	shards := make([]shard, o.shardCount)
	for i := range shards {
		shards[i].entries = make(map[string]*lockEntry)
	}
	return &keyLockImpl{
		shards:  shards,
		mask:    uint64(o.shardCount - 1), //nolint:gosec // validate 保证 shardCount ∈ [1, 65536]
		maxKeys: o.maxKeys,
		done:    make(chan struct{}),
	}
}

func (kl *keyLockImpl) getShard(key string) *shard {
	return &kl.shards[xxhash.Sum64String(key)&kl.mask]
}

// getOrCreate 获取或创建 lockEntry，并增加引用计数。
func (kl *keyLockImpl) getOrCreate(key string) (*lockEntry, error) {
	s := kl.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if kl.closed.Load() {
		return nil, ErrClosed
	}

	e, ok := s.entries[key]
	if !ok {
		if kl.maxKeys > 0 {
			// CAS 保证跨分片并发时不突破上限
			for {
				cur := kl.keyCount.Load()
				if cur >= int64(kl.maxKeys) {
					return nil, ErrMaxKeysExceeded
				}
				if kl.keyCount.CompareAndSwap(cur, cur+1) {
					break
				}
			}
		} else {
			kl.keyCount.Add(1)
		}
		e = &lockEntry{ch: make(chan struct{}, 1)}
		s.entries[key] = e
	}
	e.refcnt++
	return e, nil
}

// releaseRef 减少引用计数，归零时从 map 删除。
func (kl *keyLockImpl) releaseRef(key string, entry *lockEntry) {
	s := kl.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.refcnt--
	if entry.refcnt == 0 {
		delete(s.entries, key)
		kl.keyCount.Add(-1)
	}
}

func (kl *keyLockImpl) Acquire(ctx context.Context, key string) (Handle, error) {
	if ctx == nil {
		panic("xkeylock: nil Context")
	}
	if key == "" {
		return nil, ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := kl.getOrCreate(key)
	if err != nil {
		return nil, err
	}
	select {
	case entry.ch <- struct{}{}:
		return &handle{kl: kl, key: key, entry: entry}, nil
	case <-ctx.Done():
		kl.releaseRef(key, entry)
		return nil, ctx.Err()
	case <-kl.done:
		kl.releaseRef(key, entry)
		return nil, ErrClosed
	}
}

func (kl *keyLockImpl) TryAcquire(key string) (Handle, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	entry, err := kl.getOrCreate(key)
	if err != nil {
		return nil, err
	}
	select {
	case entry.ch <- struct{}{}:
		return &handle{kl: kl, key: key, entry: entry}, nil
	default:
		kl.releaseRef(key, entry)
		return nil, nil
	}
}

func (kl *keyLockImpl) Len() int {
	return int(max(kl.keyCount.Load(), 0))
}

func (kl *keyLockImpl) Close() error {
	if !kl.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(kl.done)
	return nil
}

func (h *handle) Unlock() error {
	if !h.done.CompareAndSwap(false, true) {
		return ErrLockNotHeld
	}
	<-h.entry.ch
	h.kl.releaseRef(h.key, h.entry)
	return nil
}

func (h *handle) Key() string {
	return h.key
}

// 编译期接口检查
var (
	_ Locker = (*keyLockImpl)(nil)
	_ Handle = (*handle)(nil)
)
