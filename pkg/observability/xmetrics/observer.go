package xmetrics

import (
	"context"
	"strconv"
)

// Kind 跨度类型：控制器读取为 Internal，HTTP 请求为 Server，
// ClickHouse/MongoDB 查询为 Client。
type Kind int

const (
	KindInternal Kind = iota
	KindServer
	KindClient
)

var kindNames = [...]string{
	KindInternal: "Internal",
	KindServer:   "Server",
	KindClient:   "Client",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Status 跨度结果，写入指标的 status 维度。
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Attr 跨度或指标属性
type Attr struct {
	Key   string
	Value any
}

// SpanOptions 开启跨度的参数。Component + Operation 组成 span 名，
// 例如 "xstampede.get"、"xclickhouse.query_row"。
type SpanOptions struct {
	Component string
	Operation string
	Kind      Kind
	Attrs     []Attr
}

// Result 跨度结束时上报的结果。
//
// Status 为空时按 Err 推导。未找到商品这类业务结果应显式设为 StatusOK，
// 这样 Err 仍会记录到 span 上，但不计入错误率。
type Result struct {
	Status Status
	Err    error
	Attrs  []Attr
}

func (r Result) status() Status {
	switch {
	case r.Status != "":
		return r.Status
	case r.Err != nil:
		return StatusError
	default:
		return StatusOK
	}
}

// Span 一次观测，End 只应调用一次。
type Span interface {
	End(result Result)
}

// Observer 观测入口。控制器、HTTP 处理器和存储客户端都只依赖这个接口，
// 生产环境用 [NewOTelObserver]，关闭指标时用 [NoopObserver]。
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 不记录任何数据。
type NoopObserver struct{}

func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 空跨度
type NoopSpan struct{}

func (NoopSpan) End(Result) {}

// Start 是调用方统一使用的入口：observer 为 nil 或返回 nil 时
// 退化为 [NoopSpan]，调用方无需判空即可 defer span.End。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	next, span := observer.Start(ctx, opts)
	if next == nil {
		next = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return next, span
}
