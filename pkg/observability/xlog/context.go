package xlog

import "context"

type requestIDKey struct{}

// WithRequestID 把请求 ID 放入 ctx，EnrichHandler 会把它写入每条日志。
// 空 id 不写入。
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID 返回 ctx 中的请求 ID，没有时返回空串。
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
