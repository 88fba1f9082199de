//go:build integration

package xdlock_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/omeyang/itemcache/pkg/distributed/xdlock"
)

// startContainer 启动容器并返回映射后的 endpoint，无法启动时跳过测试。
func startContainer(t *testing.T, req testcontainers.ContainerRequest) string {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("无法启动容器 %s: %v", req.Image, err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func setupRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	addr := os.Getenv("ITEMCACHE_REDIS_ADDR")
	if addr == "" {
		addr = startContainer(t, testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		})
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func setupEtcd(t *testing.T) *clientv3.Client {
	t.Helper()
	endpoint := os.Getenv("ITEMCACHE_ETCD_ENDPOINTS")
	if endpoint == "" {
		endpoint = startContainer(t, testcontainers.ContainerRequest{
			Image:        "quay.io/coreos/etcd:v3.6.0",
			ExposedPorts: []string{"2379/tcp"},
			Cmd: []string{
				"etcd",
				"--listen-client-urls=http://0.0.0.0:2379",
				"--advertise-client-urls=http://0.0.0.0:2379",
			},
			WaitingFor: wait.ForListeningPort("2379/tcp"),
		})
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{endpoint},
		DialTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// exerciseLocker 验证各后端共同的锁语义。
func exerciseLocker(t *testing.T, l xdlock.Locker) {
	ctx := context.Background()
	require.NoError(t, l.Health(ctx))

	t.Run("互斥", func(t *testing.T) {
		var (
			acquired atomic.Int32
			wg       sync.WaitGroup
		)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h, err := l.TryAcquire(ctx, "mutex", 0, 5*time.Second)
				if err == nil && h != nil {
					acquired.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), acquired.Load())
	})

	t.Run("等待窗口内获取", func(t *testing.T) {
		h, err := l.TryAcquire(ctx, "wait", 0, 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, h)
		go func() {
			time.Sleep(200 * time.Millisecond)
			_ = h.Release(context.Background())
		}()

		h2, err := l.TryAcquire(ctx, "wait", 3*time.Second, 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, h2)
		assert.NoError(t, h2.Release(ctx))
	})

	t.Run("租约到期", func(t *testing.T) {
		h, err := l.TryAcquire(ctx, "lease", 0, time.Second)
		require.NoError(t, err)
		require.NotNil(t, h)

		h2, err := l.TryAcquire(ctx, "lease", 5*time.Second, 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, h2)
		assert.ErrorIs(t, h.Release(ctx), xdlock.ErrNotLocked)
		assert.NoError(t, h2.Release(ctx))
	})
}

func TestIntegration_RedisLocker(t *testing.T) {
	l, err := xdlock.NewRedis([]redis.UniversalClient{setupRedis(t)})
	require.NoError(t, err)
	defer func() { _ = l.Close(context.Background()) }()

	exerciseLocker(t, l)
}

func TestIntegration_EtcdLocker(t *testing.T) {
	l, err := xdlock.NewEtcd(setupEtcd(t))
	require.NoError(t, err)
	defer func() { _ = l.Close(context.Background()) }()

	exerciseLocker(t, l)
}
