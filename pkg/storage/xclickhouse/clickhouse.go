package xclickhouse

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/omeyang/itemcache/internal/storageopt"
	"github.com/omeyang/itemcache/pkg/observability/xmetrics"
)

const componentName = "xclickhouse"

// conn 包装器用到的 driver.Conn 子集
type conn interface {
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
	Ping(ctx context.Context) error
	Stats() driver.Stats
	Close() error
}

// Client ClickHouse 包装器，并发安全。
type Client struct {
	conn     conn
	options  *Options
	detector *storageopt.SlowQueryDetector[SlowQueryInfo]
	health   storageopt.HealthCounter
	queries  storageopt.QueryCounter
	closed   atomic.Bool
}

// Open 按配置建立连接池并包装。clickhouse-go 延迟建连，连通性由 Health 检测。
func Open(cfg Config, opts ...Option) (*Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, ErrNoAddrs
	}
	c, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addrs,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("xclickhouse: open: %w", err)
	}
	return New(c, opts...)
}

// New 包装已有连接
func New(c driver.Conn, opts ...Option) (*Client, error) {
	if c == nil {
		return nil, ErrNilConn
	}
	return newClient(c, opts...), nil
}

func newClient(c conn, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	var hook storageopt.SlowQueryHook[SlowQueryInfo]
	if o.SlowQueryHook != nil {
		hook = func(ctx context.Context, info SlowQueryInfo) { o.SlowQueryHook(ctx, info) }
	}
	return &Client{
		conn:     c,
		options:  o,
		detector: storageopt.NewSlowQueryDetector(o.SlowQueryThreshold, hook),
	}
}

// QueryRow 执行单行查询。错误通过返回行的 Err/Scan 暴露。
func (c *Client) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	if c.closed.Load() {
		return errRow{err: ErrClosed}
	}

	ctx, span := xmetrics.Start(ctx, c.options.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "query_row",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("db.system", "clickhouse")},
	})

	c.queries.IncQuery()
	start := time.Now()
	row := c.conn.QueryRow(ctx, query, args...)
	elapsed := time.Since(start)

	err := row.Err()
	if err != nil {
		c.queries.IncQueryError()
	}
	c.detector.MaybeSlowQuery(ctx, SlowQueryInfo{Query: query, Args: args, Duration: elapsed}, elapsed)
	span.End(xmetrics.Result{Err: err})
	return row
}

// Health 通过 Ping 检测连接
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
	if err := c.conn.Ping(ctx); err != nil {
		c.health.IncPingError()
		return err
	}
	return nil
}

// Stats 返回统计快照
func (c *Client) Stats() Stats {
	ds := c.conn.Stats()
	return Stats{
		PingCount:   c.health.PingCount(),
		PingErrors:  c.health.PingErrors(),
		QueryCount:  c.queries.QueryCount(),
		QueryErrors: c.queries.QueryErrors(),
		SlowQueries: c.detector.Count(),
		Pool:        PoolStats{Open: ds.Open, Idle: ds.Idle, InUse: ds.Open - ds.Idle},
	}
}

// Close 关闭连接，重复调用返回 ErrClosed。
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return c.conn.Close()
}

// errRow 关闭后返回的行
type errRow struct{ err error }

func (r errRow) Err() error           { return r.err }
func (r errRow) Scan(...any) error    { return r.err }
func (r errRow) ScanStruct(any) error { return r.err }
