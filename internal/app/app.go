package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/omeyang/itemcache/internal/item"
	"github.com/omeyang/itemcache/pkg/config/xconf"
	"github.com/omeyang/itemcache/pkg/distributed/xdlock"
	"github.com/omeyang/itemcache/pkg/lifecycle/xrun"
	"github.com/omeyang/itemcache/pkg/observability/xlog"
	"github.com/omeyang/itemcache/pkg/observability/xmetrics"
	"github.com/omeyang/itemcache/pkg/resilience/xbreaker"
	"github.com/omeyang/itemcache/pkg/resilience/xlimit"
	"github.com/omeyang/itemcache/pkg/resilience/xretry"
	"github.com/omeyang/itemcache/pkg/storage/xcache"
	"github.com/omeyang/itemcache/pkg/storage/xclickhouse"
	"github.com/omeyang/itemcache/pkg/storage/xetcd"
	"github.com/omeyang/itemcache/pkg/storage/xmongo"
	"github.com/omeyang/itemcache/pkg/storage/xstampede"
	"github.com/omeyang/itemcache/pkg/util/xjson"
)

// ServiceName 服务名，用于 OTel resource 与日志
const ServiceName = "itemcache"

// Option App 选项
type Option func(*App)

// WithLogger 使用外部 Logger，App 不负责其关闭。
func WithLogger(l xlog.LoggerWithLevel) Option {
	return func(a *App) { a.logger = l }
}

// WithRedisClient 使用外部 Redis 客户端。客户端随 App 一起关闭。
func WithRedisClient(c redis.UniversalClient) Option {
	return func(a *App) { a.rdb = c }
}

// WithRepository 使用外部商品仓储，跳过 backing 段的连接。
func WithRepository(repo item.Repository, checks ...item.HealthCheck) Option {
	return func(a *App) {
		a.repo = repo
		a.checks = append(a.checks, checks...)
	}
}

// WithConfigSource 设置配置来源，Run 时监视其变更并热更新日志级别。
func WithConfigSource(src xconf.Config) Option {
	return func(a *App) { a.source = src }
}

// App 装配好的服务
type App struct {
	cfg    Config
	source xconf.Config
	logger xlog.LoggerWithLevel

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	reader         *sdkmetric.ManualReader
	observer       xmetrics.Observer

	rdb     redis.UniversalClient
	store   xcache.Store
	locker  xdlock.Locker
	repo    item.Repository
	checks  []item.HealthCheck
	breaker *xbreaker.Breaker
	limiter xlimit.Limiter
	cache   *xstampede.Controller[int64, item.Item]
	handler http.Handler
	server  *http.Server

	closers   []func(ctx context.Context) error
	closeOnce sync.Once
	closeErr  error
}

// New 按配置装配服务。失败时已创建的资源会被释放。
func New(ctx context.Context, cfg Config, opts ...Option) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a = &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
			a = nil
		}
	}()

	steps := []func(context.Context) error{
		a.setupLogger,
		a.setupTelemetry,
		a.setupRedis,
		a.setupStore,
		a.setupLocker,
		a.setupRepository,
		a.setupController,
		a.setupLimiter,
		a.setupHTTP,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return a, err
		}
	}
	a.logger.Info(ctx, "itemcache ready",
		xlog.Policy(a.cache.Policy().Mode.String()),
		slog.String("cache", cfg.Cache.Backend),
		slog.String("lock", cfg.Lock.Backend),
		slog.String("backing", a.backingName()),
	)
	return a, nil
}

func (a *App) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *App) setupLogger(context.Context) error {
	if a.logger != nil {
		return nil
	}
	lc := a.cfg.Log
	b := xlog.New().
		SetLevelString(lc.Level).
		SetFormat(lc.Format).
		SetAddSource(lc.AddSource).
		SetAttrs(slog.String("service", ServiceName))
	if lc.File != "" {
		b.SetRotation(lc.File,
			xlog.WithMaxSizeMB(lc.MaxSizeMB),
			xlog.WithMaxBackups(lc.MaxBackups),
			xlog.WithMaxAgeDays(lc.MaxAgeDays),
			xlog.WithCompress(lc.Compress),
		)
	}
	logger, cleanup, err := b.Build()
	if err != nil {
		return fmt.Errorf("app: build logger: %w", err)
	}
	a.logger = logger
	a.onClose(func(context.Context) error { return cleanup() })
	return nil
}

func (a *App) setupTelemetry(context.Context) error {
	if !a.cfg.Metrics.Enabled {
		a.observer = xmetrics.NoopObserver{}
		return nil
	}
	res := resource.NewSchemaless(attribute.String("service.name", ServiceName))
	a.tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	a.reader = sdkmetric.NewManualReader()
	a.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(a.reader), sdkmetric.WithResource(res))
	a.onClose(a.tracerProvider.Shutdown)
	a.onClose(a.meterProvider.Shutdown)

	obs, err := xmetrics.NewOTelObserver(
		xmetrics.WithInstrumentationName(a.cfg.Metrics.InstrumentationName),
		xmetrics.WithTracerProvider(a.tracerProvider),
		xmetrics.WithMeterProvider(a.meterProvider),
		xmetrics.WithMetricAttrKeys("policy", "outcome", "http.route"),
	)
	if err != nil {
		return fmt.Errorf("app: create observer: %w", err)
	}
	a.observer = obs
	return nil
}

func (a *App) setupRedis(ctx context.Context) error {
	if a.rdb == nil {
		if !a.cfg.usesRedis() {
			return nil
		}
		rc := a.cfg.Redis
		addrs := rc.Addrs
		if len(addrs) == 0 {
			addrs = []string{rc.Addr}
		}
		a.rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:        addrs,
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
		})
	}
	// Redis 缓存存储关闭时会一并关闭客户端
	if a.cfg.Cache.Backend != BackendRedis {
		rdb := a.rdb
		a.onClose(func(context.Context) error { return rdb.Close() })
	}
	return a.ping(ctx, "redis", func() error { return a.rdb.Ping(ctx).Err() })
}

// ping 带退避重试地检查依赖连通性
func (a *App) ping(ctx context.Context, name string, fn func() error) error {
	err := xretry.Do(ctx, fn, xretry.Startup(func(n uint, err error) {
		a.logger.Warn(ctx, "dependency not ready, retrying",
			xlog.Component(name), xlog.Count(int64(n+1)), xlog.Err(err))
	})...)
	if err != nil {
		return fmt.Errorf("app: %s unavailable: %w", name, err)
	}
	return nil
}

func (a *App) setupStore(context.Context) error {
	var err error
	switch a.cfg.Cache.Backend {
	case BackendRedis:
		a.store, err = xcache.NewRedis(a.rdb)
	case BackendMemory:
		a.store, err = xcache.NewMemory(xcache.WithMemoryMaxCost(a.cfg.Cache.MemoryMaxCost))
	}
	if err != nil {
		return fmt.Errorf("app: create cache store: %w", err)
	}
	store := a.store
	a.onClose(func(context.Context) error { return store.Close() })
	a.checks = append(a.checks, item.HealthCheck{Name: "cache", Check: store.Health})
	return nil
}

func (a *App) setupLocker(ctx context.Context) error {
	lc := a.cfg.Lock
	prefix := xdlock.WithKeyPrefix(lc.KeyPrefix)
	var err error
	switch lc.Backend {
	case BackendRedis:
		a.locker, err = xdlock.NewRedis([]redis.UniversalClient{a.rdb}, prefix)
	case BackendLocal:
		a.locker, err = xdlock.NewLocal(prefix)
	case BackendEtcd:
		var ec *xetcd.Client
		ec, err = xetcd.NewClient(ctx, &lc.Etcd, xetcd.WithHealthCheck(true, 0))
		if err != nil {
			return fmt.Errorf("app: connect etcd: %w", err)
		}
		a.onClose(func(context.Context) error { return ec.Close() })
		a.locker, err = xdlock.NewEtcd(ec.RawClient(), prefix)
	}
	if err != nil {
		return fmt.Errorf("app: create locker: %w", err)
	}
	locker := a.locker
	a.onClose(locker.Close)
	a.checks = append(a.checks, item.HealthCheck{Name: "lock", Check: locker.Health})
	return nil
}

func (a *App) setupRepository(ctx context.Context) error {
	if a.repo != nil {
		return nil
	}
	bc := a.cfg.Backing
	switch bc.Kind {
	case BackendClickHouse:
		ch, err := xclickhouse.Open(bc.ClickHouse,
			xclickhouse.WithObserver(a.observer),
			xclickhouse.WithSlowQueryThreshold(bc.SlowQueryThreshold),
			xclickhouse.WithSlowQueryHook(func(ctx context.Context, info xclickhouse.SlowQueryInfo) {
				a.logger.Warn(ctx, "slow query",
					xlog.Component("clickhouse"), slog.String("query", info.Query), xlog.Duration(info.Duration))
			}),
		)
		if err != nil {
			return fmt.Errorf("app: open clickhouse: %w", err)
		}
		a.onClose(func(context.Context) error { return ch.Close() })
		if err := a.ping(ctx, "clickhouse", func() error { return ch.Health(ctx) }); err != nil {
			return err
		}
		repo, err := item.NewClickHouseRepository(ch)
		if err != nil {
			return err
		}
		a.repo = repo
		a.checks = append(a.checks, item.HealthCheck{Name: "clickhouse", Check: ch.Health})
	case BackendMongo:
		mc, err := xmongo.Connect(bc.Mongo,
			xmongo.WithObserver(a.observer),
			xmongo.WithSlowQueryThreshold(bc.SlowQueryThreshold),
			xmongo.WithSlowQueryHook(func(ctx context.Context, info xmongo.SlowQueryInfo) {
				a.logger.Warn(ctx, "slow query",
					xlog.Component("mongo"), xlog.Operation(info.Operation),
					slog.String("collection", info.Collection), xlog.Duration(info.Duration))
			}),
		)
		if err != nil {
			return fmt.Errorf("app: connect mongo: %w", err)
		}
		a.onClose(mc.Close)
		if err := a.ping(ctx, "mongo", func() error { return mc.Health(ctx) }); err != nil {
			return err
		}
		repo, err := item.NewMongoRepository(mc.Collection(bc.Mongo.Database, bc.Mongo.Collection))
		if err != nil {
			return err
		}
		a.repo = repo
		a.checks = append(a.checks, item.HealthCheck{Name: "mongo", Check: mc.Health})
	}
	return nil
}

func (a *App) setupController(context.Context) error {
	policy, err := a.cfg.Stampede.Build()
	if err != nil {
		return err
	}
	if bc := a.cfg.Breaker; bc.Enabled {
		var trip xbreaker.TripPolicy = xbreaker.NewConsecutiveFailures(bc.ConsecutiveFailures)
		if bc.FailureRatio > 0 {
			trip = xbreaker.NewFailureRatio(bc.FailureRatio, bc.MinRequests)
		}
		a.breaker = item.NewBreaker("item-repository",
			xbreaker.WithTripPolicy(trip),
			xbreaker.WithTimeout(bc.Timeout),
			xbreaker.WithInterval(bc.Interval),
			xbreaker.WithMaxRequests(bc.MaxRequests),
			xbreaker.WithOnStateChange(func(name string, from, to xbreaker.State) {
				a.logger.Warn(context.Background(), "breaker state changed",
					xlog.Component(name), slog.String("from", from.String()), slog.String("to", to.String()))
			}),
		)
	}

	a.cache, err = xstampede.New(a.store, a.locker, item.NewLoader(a.repo, a.breaker), policy,
		xstampede.WithLogger(a.logger),
		xstampede.WithObserver(a.observer),
		xstampede.WithKeyPrefix(a.cfg.Cache.KeyPrefix),
		xstampede.WithLoadTimeout(a.cfg.Backing.LoadTimeout),
		xstampede.WithReleaseTimeout(a.cfg.Stampede.ReleaseTimeout),
	)
	if err != nil {
		return fmt.Errorf("app: create controller: %w", err)
	}
	return nil
}

func (a *App) setupLimiter(context.Context) error {
	rl := a.cfg.RateLimit
	if !rl.Enabled {
		return nil
	}
	var err error
	switch rl.Backend {
	case BackendRedis:
		a.limiter, err = xlimit.NewRedis(a.rdb, rl.Rule)
	case BackendLocal:
		a.limiter, err = xlimit.NewLocal(rl.Rule)
	}
	if err != nil {
		return fmt.Errorf("app: create limiter: %w", err)
	}
	return nil
}

func (a *App) setupHTTP(context.Context) error {
	opts := []item.HandlerOption{
		item.WithHealthChecks(a.checks...),
		item.WithLogger(a.logger),
		item.WithObserver(a.observer),
	}
	if a.limiter != nil {
		opts = append(opts, item.WithLimiter(a.limiter))
	}
	h, err := item.NewHandler(a.cache, item.GuardedRepository(a.repo, a.breaker), opts...)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", h.Routes())
	if a.reader != nil {
		mux.HandleFunc("GET /debug/metrics", a.serveMetrics)
	}
	a.handler = mux
	a.server = &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}
	return nil
}

func (a *App) serveMetrics(w http.ResponseWriter, r *http.Request) {
	points, err := xmetrics.Collect(r.Context(), a.reader)
	if err != nil {
		a.logger.Error(r.Context(), "collect metrics failed", xlog.Err(err))
		_ = xjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = xjson.Write(w, http.StatusOK, metricsBody{Metrics: points})
}

type metricsBody struct {
	Metrics []xmetrics.Point `json:"metrics"`
}

func (a *App) backingName() string {
	if a.cfg.Backing.Kind == "" {
		return "custom"
	}
	return a.cfg.Backing.Kind
}

// =============================================================================
// 访问器
// =============================================================================

// Cache 返回商品缓存控制器
func (a *App) Cache() *xstampede.Controller[int64, item.Item] { return a.cache }

// Handler 返回 HTTP 路由
func (a *App) Handler() http.Handler { return a.handler }

// Logger 返回服务日志
func (a *App) Logger() xlog.LoggerWithLevel { return a.logger }

// =============================================================================
// 运行与关闭
// =============================================================================

// Run 启动 HTTP 服务与后台任务，阻塞直到 ctx 结束、收到退出信号或任一任务失败。
// 返回前不会释放资源，调用方需再调用 Close。
func (a *App) Run(ctx context.Context, opts ...xrun.Option) error {
	services := []xrun.NamedService{
		xrun.Named("http", xrun.HTTPServer(a.server, a.cfg.Server.ShutdownTimeout)),
	}
	if a.source != nil && a.source.Path() != "" {
		w, err := xconf.Watch(a.source, a.onReload)
		if err != nil {
			return fmt.Errorf("app: watch config: %w", err)
		}
		services = append(services, xrun.Named("config-watch", w.Run))
	}
	if d := a.cfg.Metrics.StatsInterval; d > 0 {
		services = append(services, xrun.Named("stats", xrun.Ticker(d, a.logStats)))
	}

	a.logger.Info(ctx, "http server listening", slog.String("addr", a.cfg.Server.Addr))
	opts = append([]xrun.Option{xrun.WithLogger(a.logger), xrun.WithName(ServiceName)}, opts...)
	return xrun.Run(ctx, opts, services...)
}

// onReload 只热更新日志级别，其余配置需重启生效。
func (a *App) onReload(src xconf.Config, err error) {
	ctx := context.Background()
	if err != nil {
		a.logger.Warn(ctx, "config reload failed, keeping previous", xlog.Err(err))
		return
	}
	cfg, err := Load(src)
	if err != nil {
		a.logger.Warn(ctx, "reloaded config rejected", xlog.Err(err))
		return
	}
	level, _ := xlog.ParseLevel(cfg.Log.Level)
	if level != a.logger.GetLevel() {
		a.logger.SetLevel(level)
		a.logger.Info(ctx, "log level changed", slog.String("level", level.String()))
	}
}

func (a *App) logStats(ctx context.Context) error {
	s := a.cache.Stats()
	a.logger.Info(ctx, "cache stats",
		xlog.Policy(a.cache.Policy().Mode.String()),
		slog.Uint64("hits", s.Hits),
		slog.Uint64("misses", s.Misses),
		slog.Uint64("stale_hits", s.StaleHits),
		slog.Uint64("loads", s.Loads),
		slog.Uint64("load_errors", s.LoadErrors),
		slog.Uint64("lock_contended", s.LockContended),
		slog.Uint64("fallbacks", s.Fallbacks),
		slog.Uint64("early_refreshes", s.EarlyRefreshes),
	)
	return nil
}

// Close 逆序释放资源，幂等。
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
