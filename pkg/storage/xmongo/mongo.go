package xmongo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/omeyang/itemcache/internal/storageopt"
	"github.com/omeyang/itemcache/pkg/observability/xmetrics"
)

const componentName = "xmongo"

// clientOperations *mongo.Client 满足，测试时可替换。
type clientOperations interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
	Disconnect(ctx context.Context) error
	NumberSessionsInProgress() int
}

// singleFinder *mongo.Collection 满足
type singleFinder interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
}

// Stats 包装器统计
type Stats struct {
	PingCount   int64
	PingErrors  int64
	SlowQueries int64

	// InUseSessions 活跃会话数，driver 不暴露连接池细节，以此近似
	InUseSessions int
}

// Client MongoDB 包装器，并发安全。
type Client struct {
	client   *mongo.Client
	ops      clientOperations
	options  *Options
	detector *storageopt.SlowQueryDetector[SlowQueryInfo]
	health   storageopt.HealthCounter
	closed   atomic.Bool
}

// Connect 按配置创建客户端。driver 延迟建连，连通性由 Health 检测。
func Connect(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URI == "" {
		return nil, ErrEmptyURI
	}
	co := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		co.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		co.SetMinPoolSize(cfg.MinPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		co.SetConnectTimeout(cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(co)
	if err != nil {
		return nil, fmt.Errorf("xmongo: connect: %w", err)
	}
	return New(client, opts...)
}

// New 包装已有客户端
func New(client *mongo.Client, opts ...Option) (*Client, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	c := newClient(client, opts...)
	c.client = client
	return c, nil
}

func newClient(ops clientOperations, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	var hook storageopt.SlowQueryHook[SlowQueryInfo]
	if o.SlowQueryHook != nil {
		hook = func(ctx context.Context, info SlowQueryInfo) { o.SlowQueryHook(ctx, info) }
	}
	return &Client{
		ops:      ops,
		options:  o,
		detector: storageopt.NewSlowQueryDetector(o.SlowQueryThreshold, hook),
	}
}

// Client 返回底层客户端
func (c *Client) Client() *mongo.Client {
	return c.client
}

// Collection 返回带观测的集合句柄
func (c *Client) Collection(database, collection string) *Collection {
	var finder singleFinder
	if c.client != nil {
		finder = c.client.Database(database).Collection(collection)
	}
	return &Collection{owner: c, finder: finder, database: database, name: collection}
}

// Health 对主节点执行 Ping
func (c *Client) Health(ctx context.Context) (err error) {
	if c.closed.Load() {
		return ErrClosed
	}

	ctx, span := xmetrics.Start(ctx, c.options.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "health",
		Kind:      xmetrics.KindClient,
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	c.health.IncPing()
	ctx, cancel := storageopt.HealthContext(ctx, c.options.HealthTimeout)
	defer cancel()
	if err := c.ops.Ping(ctx, readpref.Primary()); err != nil {
		c.health.IncPingError()
		return err
	}
	return nil
}

// Stats 返回统计快照
func (c *Client) Stats() Stats {
	return Stats{
		PingCount:     c.health.PingCount(),
		PingErrors:    c.health.PingErrors(),
		SlowQueries:   c.detector.Count(),
		InUseSessions: c.ops.NumberSessionsInProgress(),
	}
}

// Close 断开连接，重复调用返回 ErrClosed。Disconnect 失败不回滚关闭状态。
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return c.ops.Disconnect(ctx)
}

// Collection 带观测的集合句柄
type Collection struct {
	owner    *Client
	finder   singleFinder
	database string
	name     string
}

// FindOne 查询单个文档并解码到 out。未找到返回 mongo.ErrNoDocuments。
func (c *Collection) FindOne(ctx context.Context, filter, out any) (err error) {
	if c.owner.closed.Load() {
		return ErrClosed
	}

	ctx, span := xmetrics.Start(ctx, c.owner.options.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "find_one",
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String("db.system", "mongodb"),
			xmetrics.String("db.collection", c.name),
		},
	})
	defer func() {
		res := xmetrics.Result{Err: err}
		if errors.Is(err, mongo.ErrNoDocuments) {
			res = xmetrics.Result{Status: xmetrics.StatusOK}
		}
		span.End(res)
	}()

	start := time.Now()
	err = c.finder.FindOne(ctx, filter).Decode(out)
	elapsed := time.Since(start)
	c.owner.detector.MaybeSlowQuery(ctx, SlowQueryInfo{
		Database:   c.database,
		Collection: c.name,
		Operation:  "findOne",
		Filter:     filter,
		Duration:   elapsed,
	}, elapsed)
	return err
}
