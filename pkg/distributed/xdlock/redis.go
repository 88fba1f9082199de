package xdlock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redsync/redsync/v4"
	rsredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// Redis 实现
// =============================================================================

// redisLocker 基于 redsync 的 Locker。
type redisLocker struct {
	clients []redis.UniversalClient
	rs      *redsync.Redsync
	opts    *options
	closed  atomic.Bool
}

// NewRedis 创建 Redis Locker。
// 单个客户端为标准 Redis 锁（SET NX PX），多个客户端使用 Redlock 算法（需过半成功）。
// Locker 不负责关闭传入的客户端。
func NewRedis(clients []redis.UniversalClient, opts ...Option) (Locker, error) {
	if len(clients) == 0 {
		return nil, ErrNilClient
	}
	pools := make([]rsredis.Pool, len(clients))
	for i, client := range clients {
		if client == nil {
			return nil, errors.Join(ErrNilClient, errors.New("client at index "+strconv.Itoa(i)+" is nil"))
		}
		pools[i] = goredis.NewPool(client)
	}

	return &redisLocker{
		clients: clients,
		rs:      redsync.New(pools...),
		opts:    applyOptions(opts),
	}, nil
}

// TryAcquire 在等待窗口内按 RetryDelay 重试。
// 重试次数由 wait/RetryDelay 推出，不使用子 context 截断，
// 避免 SET 命令在半途被取消而留下无人持有的锁。
func (l *redisLocker) TryAcquire(ctx context.Context, name string, wait, lease time.Duration) (LockHandle, error) {
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

	tries := 1
	if wait > 0 {
		tries = int(wait/l.opts.RetryDelay) + 1
	}
	key := l.opts.KeyPrefix + name
	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(lease),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		// redsync 在 ctx 取消时返回 ErrFailed，需要单独检查
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if isContention(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrLockFailed, err)
	}

	return &redisLockHandle{mutex: mutex, key: key}, nil
}

// isContention 判断错误是否只是锁被占用。
// ErrTaken 是结构体类型，需要使用 errors.As 检查。
func isContention(err error) bool {
	var errTaken *redsync.ErrTaken
	if errors.As(err, &errTaken) {
		return true
	}
	return errors.Is(err, redsync.ErrFailed)
}

// Health 对所有 Redis 节点执行 PING。
func (l *redisLocker) Health(ctx context.Context) error {
	if l.closed.Load() {
		return ErrFactoryClosed
	}
	for _, client := range l.clients {
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close 仅设置关闭标记，Redis 客户端由调用者管理。
func (l *redisLocker) Close(context.Context) error {
	l.closed.Store(true)
	return nil
}

// =============================================================================
// Redis LockHandle 实现
// =============================================================================

type redisLockHandle struct {
	mutex *redsync.Mutex
	key   string
}

// Release 释放锁。
// 允许在 Locker 关闭后释放，避免锁悬挂到租约到期。
func (h *redisLockHandle) Release(ctx context.Context) error {
	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) {
			return ErrNotLocked
		}
		var errTaken *redsync.ErrTaken
		if errors.As(err, &errTaken) {
			return ErrNotLocked
		}
		return fmt.Errorf("xdlock: release %q: %w", h.key, err)
	}
	if !ok {
		return ErrNotLocked
	}
	return nil
}

func (h *redisLockHandle) Key() string {
	return h.key
}

var (
	_ Locker     = (*redisLocker)(nil)
	_ LockHandle = (*redisLockHandle)(nil)
)
