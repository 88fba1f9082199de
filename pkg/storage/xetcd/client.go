package xetcd

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/omeyang/itemcache/internal/storageopt"
)

// etcdClient 健康检查与关闭所需的最小接口，*clientv3.Client 满足。
type etcdClient interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Close() error
}

// Client etcd 客户端封装，并发安全。
type Client struct {
	client    etcdClient
	rawClient *clientv3.Client
	opts      *options
	health    storageopt.HealthCounter
	closed    atomic.Bool
}

// NewClient 创建 etcd 客户端。
func NewClient(ctx context.Context, config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	cfg := config.applyDefaults()

	// keepalive 只通过 DialOptions 设置，避免与 Config 字段重复
	rawClient, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
		TLS:         o.tlsConfig,
		DialOptions: []grpc.DialOption{
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                cfg.DialKeepAliveTime,
				Timeout:             cfg.DialKeepAliveTimeout,
				PermitWithoutStream: true,
			}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("xetcd: create client: %w", err)
	}

	c := newClient(rawClient, rawClient, o)
	if o.healthCheck {
		if err := c.Health(ctx); err != nil {
			return nil, errors.Join(fmt.Errorf("xetcd: health check failed: %w", err), rawClient.Close())
		}
	}
	return c, nil
}

func newClient(client etcdClient, raw *clientv3.Client, o *options) *Client {
	return &Client{client: client, rawClient: raw, opts: o}
}

// RawClient 返回原生客户端，供 xdlock.NewEtcd 使用。
func (c *Client) RawClient() *clientv3.Client {
	return c.rawClient
}

// Health 读取健康检查键，键不存在也视为健康。
func (c *Client) Health(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	c.health.IncPing()

	ctx, cancel := storageopt.HealthContext(ctx, c.opts.healthTimeout)
	defer cancel()
	if _, err := c.client.Get(ctx, c.opts.healthCheckKey); err != nil {
		c.health.IncPingError()
		return err
	}
	return nil
}

// PingStats 返回健康检查次数与失败次数
func (c *Client) PingStats() (count, errs int64) {
	return c.health.PingCount(), c.health.PingErrors()
}

// Close 关闭客户端，重复调用返回 nil。
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.client.Close()
}
