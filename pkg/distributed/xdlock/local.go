package xdlock

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/omeyang/itemcache/pkg/util/xkeylock"
)

// =============================================================================
// Local 实现
// =============================================================================

// localLocker 基于 xkeylock 的进程内 Locker。
type localLocker struct {
	kl     xkeylock.Locker
	prefix string
	closed atomic.Bool
}

// NewLocal 创建进程内 Locker。
// 只在单实例内互斥，多实例部署应使用 NewRedis 或 NewEtcd。
func NewLocal(opts ...Option) (Locker, error) {
	o := applyOptions(opts)
	kl, err := xkeylock.New()
	if err != nil {
		return nil, fmt.Errorf("xdlock: create local locker: %w", err)
	}
	return &localLocker{kl: kl, prefix: o.KeyPrefix}, nil
}

func (l *localLocker) TryAcquire(ctx context.Context, name string, wait, lease time.Duration) (LockHandle, error) {
	if l.closed.Load() {
		return nil, ErrFactoryClosed
	}
	wait, err := validateRequest(name, wait, lease)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := l.prefix + name
	var h xkeylock.Handle
	if wait == 0 {
		h, err = l.kl.TryAcquire(key)
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		h, err = l.kl.Acquire(waitCtx, key)
		cancel()
	}
	if err != nil {
		// 父 ctx 取消与等待窗口到期需要区分
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		if errors.Is(err, xkeylock.ErrClosed) {
			return nil, ErrFactoryClosed
		}
		return nil, fmt.Errorf("%w: %w", ErrLockFailed, err)
	}
	if h == nil {
		return nil, nil
	}

	return newLeaseHandle(key, lease, func(context.Context) error {
		if err := h.Unlock(); err != nil {
			return ErrNotLocked
		}
		return nil
	}), nil
}

func (l *localLocker) Health(context.Context) error {
	if l.closed.Load() {
		return ErrFactoryClosed
	}
	return nil
}

func (l *localLocker) Close(context.Context) error {
	if l.closed.Swap(true) {
		return nil
	}
	return l.kl.Close()
}

var _ Locker = (*localLocker)(nil)
