package item

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/omeyang/itemcache/pkg/observability/xlog"
	"github.com/omeyang/itemcache/pkg/observability/xmetrics"
	"github.com/omeyang/itemcache/pkg/resilience/xlimit"
	"github.com/omeyang/itemcache/pkg/storage/xstampede"
	"github.com/omeyang/itemcache/pkg/util/xjson"
)

// HeaderRequestID 请求 id 头
const HeaderRequestID = "X-Request-ID"

// Reader 缓存读取入口，*xstampede.Controller[int64, Item] 满足。
type Reader interface {
	Get(ctx context.Context, id int64) (Item, error)
	Stats() xstampede.Stats
	Policy() xstampede.Policy
}

// HealthCheck 命名的依赖检查
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler 商品 HTTP 接口
type Handler struct {
	cache    Reader
	repo     Repository
	limiter  xlimit.Limiter
	checks   []HealthCheck
	logger   xlog.Logger
	observer xmetrics.Observer
	newID    func() string
}

// HandlerOption Handler 选项
type HandlerOption func(*Handler)

// WithLimiter 为直读接口启用限流
func WithLimiter(l xlimit.Limiter) HandlerOption {
	return func(h *Handler) { h.limiter = l }
}

// WithHealthChecks 设置 /healthz 检查的依赖
func WithHealthChecks(checks ...HealthCheck) HandlerOption {
	return func(h *Handler) { h.checks = append(h.checks, checks...) }
}

// WithLogger 设置日志
func WithLogger(l xlog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithObserver 设置观测器，每个请求一个 server span
func WithObserver(o xmetrics.Observer) HandlerOption {
	return func(h *Handler) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithRequestIDFunc 替换请求 id 生成函数，默认 uuid v4
func WithRequestIDFunc(fn func() string) HandlerOption {
	return func(h *Handler) {
		if fn != nil {
			h.newID = fn
		}
	}
}

// NewHandler 创建 Handler
func NewHandler(cache Reader, repo Repository, opts ...HandlerOption) (*Handler, error) {
	if cache == nil || repo == nil {
		return nil, ErrNilBackend
	}
	h := &Handler{
		cache:    cache,
		repo:     repo,
		logger:   xlog.Default(),
		observer: xmetrics.NoopObserver{},
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes 返回完整路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", h.getCached)

	var direct http.Handler = http.HandlerFunc(h.getDirect)
	if h.limiter != nil {
		direct = xlimit.HTTPMiddleware(h.limiter, xlimit.WithErrorHandler(func(r *http.Request, err error) {
			h.logger.Warn(r.Context(), "rate limiter unavailable, allowing request", xlog.Err(err))
		}))(direct)
	}
	mux.Handle("GET /items/{id}/db", direct)

	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /debug/stats", h.stats)
	return h.instrument(mux)
}

// =============================================================================
// 处理函数
// =============================================================================

func (h *Handler) getCached(w http.ResponseWriter, r *http.Request) {
	h.serveItem(w, r, h.cache.Get)
}

func (h *Handler) getDirect(w http.ResponseWriter, r *http.Request) {
	h.serveItem(w, r, h.repo.Get)
}

func (h *Handler) serveItem(w http.ResponseWriter, r *http.Request, get func(context.Context, int64) (Item, error)) {
	ctx := r.Context()
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		h.write(ctx, w, http.StatusBadRequest, xjson.ErrorBody{Error: err.Error()})
		return
	}

	it, err := get(ctx, id)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Warn(ctx, "item read failed", xlog.Err(err), xlog.StatusCode(status))
		}
		h.write(ctx, w, status, xjson.ErrorBody{Error: err.Error()})
		return
	}
	h.write(ctx, w, http.StatusOK, it)
}

// StatusFor 将读取错误映射为 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, xstampede.ErrNotFound):
		return http.StatusNotFound
	default:
		// Unavailable、Interrupted 以及未归类的错误
		return http.StatusServiceUnavailable
	}
}

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body := healthBody{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			body.Checks[c.Name] = err.Error()
			body.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		body.Checks[c.Name] = "ok"
	}
	h.write(ctx, w, status, body)
}

type statsBody struct {
	Policy string          `json:"policy"`
	Stats  xstampede.Stats `json:"stats"`
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	h.write(r.Context(), w, http.StatusOK, statsBody{
		Policy: h.cache.Policy().Mode.String(),
		Stats:  h.cache.Stats(),
	})
}

func (h *Handler) write(ctx context.Context, w http.ResponseWriter, status int, v any) {
	if err := xjson.Write(w, status, v); err != nil {
		h.logger.Warn(ctx, "write response failed", xlog.Err(err))
	}
}

// =============================================================================
// 中间件
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// instrument 注入请求 id、开启 server span 并记录访问日志。
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = h.newID()
		}
		w.Header().Set(HeaderRequestID, id)

		ctx := xlog.WithRequestID(r.Context(), id)
		ctx, span := xmetrics.Start(ctx, h.observer, xmetrics.SpanOptions{
			Component: "http",
			Operation: "request",
			Kind:      xmetrics.KindServer,
			Attrs: []xmetrics.Attr{
				xmetrics.String("http.method", r.Method),
				xmetrics.String("http.path", r.URL.Path),
			},
		})

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r = r.WithContext(ctx)
		next.ServeHTTP(rec, r)

		result := xmetrics.Result{
			Attrs: []xmetrics.Attr{
				xmetrics.String("http.route", routeOf(r)),
				xmetrics.Int("http.status_code", rec.status),
			},
		}
		if rec.status >= http.StatusInternalServerError {
			result.Status = xmetrics.StatusError
		}
		span.End(result)

		h.logger.Debug(ctx, "request served",
			xlog.Method(r.Method), xlog.Path(r.URL.Path),
			xlog.StatusCode(rec.status), xlog.Duration(time.Since(start)))
	})
}

// routeOf 返回匹配的路由模式，未匹配时为 "unmatched"。
func routeOf(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}
