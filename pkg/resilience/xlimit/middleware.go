package xlimit

import (
	"net"
	"net/http"
)

// KeyFunc 从请求中提取限流键
type KeyFunc func(r *http.Request) string

// MiddlewareOption HTTP 中间件选项
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	keyFunc KeyFunc
	onError func(r *http.Request, err error)
	deny    http.HandlerFunc
}

// WithKeyFunc 设置限流键提取函数，默认按客户端 IP。
func WithKeyFunc(fn KeyFunc) MiddlewareOption {
	return func(o *middlewareOptions) {
		if fn != nil {
			o.keyFunc = fn
		}
	}
}

// WithErrorHandler 设置限流器出错时的回调（请求仍会放行）。
func WithErrorHandler(fn func(r *http.Request, err error)) MiddlewareOption {
	return func(o *middlewareOptions) { o.onError = fn }
}

// WithDenyHandler 设置被限流时的响应，默认 429。
func WithDenyHandler(fn http.HandlerFunc) MiddlewareOption {
	return func(o *middlewareOptions) {
		if fn != nil {
			o.deny = fn
		}
	}
}

// RemoteIP 返回请求来源 IP（不信任转发头）。
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func defaultDeny(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
}

// HTTPMiddleware 返回限流中间件。限流器出错时放行。
func HTTPMiddleware(limiter Limiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	o := middlewareOptions{keyFunc: RemoteIP, deny: defaultDeny}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), o.keyFunc(r))
			if err != nil {
				if o.onError != nil {
					o.onError(r, err)
				}
				next.ServeHTTP(w, r)
				return
			}
			res.SetHeaders(w)
			if !res.Allowed {
				o.deny(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
