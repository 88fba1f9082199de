package xdlock

import (
	"context"
	"sync/atomic"
	"time"
)

// expireReleaseTimeout 租约到期自动释放时使用的超时。
const expireReleaseTimeout = 5 * time.Second

// leaseHandle 为本身不具备租约语义的后端（进程内锁、带自动续期的 etcd Session）
// 提供统一的租约：lease 到期后由定时器自动释放。
type leaseHandle struct {
	key     string
	release func(ctx context.Context) error
	timer   *time.Timer
	done    atomic.Bool
}

func newLeaseHandle(key string, lease time.Duration, release func(ctx context.Context) error) *leaseHandle {
	h := &leaseHandle{key: key, release: release}
	h.timer = time.AfterFunc(lease, h.expire)
	return h
}

func (h *leaseHandle) expire() {
	if !h.done.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), expireReleaseTimeout)
	defer cancel()
	_ = h.release(ctx) //nolint:errcheck // 租约到期释放失败时，后端自身的过期机制兜底
}

func (h *leaseHandle) Release(ctx context.Context) error {
	if !h.done.CompareAndSwap(false, true) {
		return ErrNotLocked
	}
	h.timer.Stop()
	return h.release(ctx)
}

func (h *leaseHandle) Key() string {
	return h.key
}

var _ LockHandle = (*leaseHandle)(nil)
