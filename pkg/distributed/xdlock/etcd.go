package xdlock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

// =============================================================================
// etcd 实现
// =============================================================================

// etcdLocker 基于 concurrency.Mutex 的 Locker。
//
// 每次获取创建独立 Session，TTL 取 lease 向上取整的秒数。
// Session 会自动续期，因此由 leaseHandle 的定时器在 lease 到期时关闭 Session，
// 撤销租约后 etcd 删除锁 key。持有进程崩溃时，租约在 TTL 后自然过期。
type etcdLocker struct {
	client *clientv3.Client
	prefix string
	closed atomic.Bool
}

// NewEtcd 创建 etcd Locker。Locker 不负责关闭传入的客户端。
func NewEtcd(client *clientv3.Client, opts ...Option) (Locker, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := applyOptions(opts)
	return &etcdLocker{client: client, prefix: o.KeyPrefix}, nil
}

func (l *etcdLocker) TryAcquire(ctx context.Context, name string, wait, lease time.Duration) (LockHandle, error) {
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

	session, err := concurrency.NewSession(l.client,
		concurrency.WithTTL(leaseSeconds(lease)),
		concurrency.WithContext(context.WithoutCancel(ctx)),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: new session: %w", ErrLockFailed, err)
	}

	key := l.prefix + name
	mutex := concurrency.NewMutex(session, key)

	if wait == 0 {
		err = mutex.TryLock(ctx)
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		err = mutex.Lock(waitCtx)
		cancel()
	}
	if err != nil {
		// 关闭 Session 会撤销租约，清理等待过程中写入的 key
		_ = session.Close() //nolint:errcheck // 租约 TTL 到期兜底
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, concurrency.ErrLocked) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrLockFailed, err)
	}

	return newLeaseHandle(key, lease, func(ctx context.Context) error {
		select {
		case <-session.Done():
			return ErrNotLocked
		default:
		}
		unlockErr := mutex.Unlock(ctx)
		closeErr := session.Close()
		if unlockErr != nil {
			return fmt.Errorf("xdlock: release %q: %w", key, unlockErr)
		}
		return closeErr
	}), nil
}

// leaseSeconds 将租约换算为 Session TTL 秒数，向上取整，最小 1 秒。
func leaseSeconds(lease time.Duration) int {
	return max(int(math.Ceil(lease.Seconds())), 1)
}

// Health 执行一次轻量 Get 验证连接。
func (l *etcdLocker) Health(ctx context.Context) error {
	if l.closed.Load() {
		return ErrFactoryClosed
	}
	_, err := l.client.Get(ctx, l.prefix+"health-check", clientv3.WithLimit(1), clientv3.WithCountOnly())
	return err
}

// Close 仅设置关闭标记，etcd 客户端由调用者管理。
func (l *etcdLocker) Close(context.Context) error {
	l.closed.Store(true)
	return nil
}

var _ Locker = (*etcdLocker)(nil)
