package xmetrics

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultInstrumentationName = "github.com/omeyang/itemcache/xmetrics"
	unknownComponent           = "unknown"
	unknownOperation           = "unknown"

	metricOperationTotal    = "itemcache.operation.total"
	metricOperationDuration = "itemcache.operation.duration"
)

type otelConfig struct {
	instrumentationName string
	tracerProvider      trace.TracerProvider
	meterProvider       metric.MeterProvider
	buckets             []float64
	metricAttrKeys      map[string]struct{}
}

// Option 定义 OTel Observer 的配置选项。
type Option func(*otelConfig) error

// WithInstrumentationName 设置 instrumentation 名称，空值忽略。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) error {
		if name != "" {
			cfg.instrumentationName = name
		}
		return nil
	}
}

// WithTracerProvider 设置 TracerProvider，nil 时使用全局 provider。
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *otelConfig) error {
		if provider != nil {
			cfg.tracerProvider = provider
		}
		return nil
	}
}

// WithMeterProvider 设置 MeterProvider，nil 时使用全局 provider。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) error {
		if provider != nil {
			cfg.meterProvider = provider
		}
		return nil
	}
}

// WithDurationBuckets 设置耗时直方图的桶边界（秒），必须严格递增。
func WithDurationBuckets(bounds ...float64) Option {
	return func(cfg *otelConfig) error {
		if len(bounds) == 0 {
			return ErrInvalidBuckets
		}
		for i := 1; i < len(bounds); i++ {
			if !(bounds[i] > bounds[i-1]) {
				return fmt.Errorf("%w: %v", ErrInvalidBuckets, bounds)
			}
		}
		cfg.buckets = append([]float64(nil), bounds...)
		return nil
	}
}

// WithMetricAttrKeys 把指定 key 的 span 属性（SpanOptions.Attrs 与 Result.Attrs）
// 同时作为指标维度。只应用于低基数属性。
func WithMetricAttrKeys(keys ...string) Option {
	return func(cfg *otelConfig) error {
		for _, k := range keys {
			if k != "" {
				cfg.metricAttrKeys[k] = struct{}{}
			}
		}
		return nil
	}
}

// NewOTelObserver 创建基于 OpenTelemetry 的 Observer。
func NewOTelObserver(opts ...Option) (Observer, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		tracerProvider:      otel.GetTracerProvider(),
		meterProvider:       otel.GetMeterProvider(),
		metricAttrKeys:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	total, err := meter.Int64Counter(
		metricOperationTotal,
		metric.WithDescription("total operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}

	histOpts := []metric.Float64HistogramOption{
		metric.WithDescription("operation duration"),
		metric.WithUnit("s"),
	}
	if len(cfg.buckets) > 0 {
		histOpts = append(histOpts, metric.WithExplicitBucketBoundaries(cfg.buckets...))
	}
	duration, err := meter.Float64Histogram(metricOperationDuration, histOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateHistogram, err)
	}

	return &otelObserver{
		tracer:         cfg.tracerProvider.Tracer(cfg.instrumentationName),
		total:          total,
		duration:       duration,
		metricAttrKeys: cfg.metricAttrKeys,
	}, nil
}

type otelObserver struct {
	tracer         trace.Tracer
	total          metric.Int64Counter
	duration       metric.Float64Histogram
	metricAttrKeys map[string]struct{}
}

// Start 开始一次观测跨度，父 span 取自 ctx。
func (o *otelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	component := opts.Component
	if component == "" {
		component = unknownComponent
	}
	operation := opts.Operation
	if operation == "" {
		operation = unknownOperation
	}

	attrs := make([]attribute.KeyValue, 0, 2+len(opts.Attrs))
	attrs = append(attrs,
		attribute.String("component", component),
		attribute.String("operation", operation),
	)
	attrs = append(attrs, attrsToOTel(opts.Attrs)...)

	ctx, span := o.tracer.Start(
		ctx,
		component+"."+operation,
		trace.WithSpanKind(mapSpanKind(opts.Kind)),
		trace.WithAttributes(attrs...),
	)

	return ctx, &otelSpan{
		span:        span,
		observer:    o,
		ctx:         ctx,
		component:   component,
		operation:   operation,
		metricAttrs: o.pickMetricAttrs(nil, opts.Attrs),
		start:       time.Now(),
	}
}

// pickMetricAttrs 挑出允许作为指标维度的属性，后出现的同名 key 覆盖先出现的。
func (o *otelObserver) pickMetricAttrs(dst []attribute.KeyValue, attrs []Attr) []attribute.KeyValue {
	if len(o.metricAttrKeys) == 0 {
		return dst
	}
	for _, a := range attrs {
		if _, ok := o.metricAttrKeys[a.Key]; !ok || a.Value == nil {
			continue
		}
		kv := toKeyValue(a)
		replaced := false
		for i := range dst {
			if dst[i].Key == kv.Key {
				dst[i] = kv
				replaced = true
				break
			}
		}
		if !replaced {
			dst = append(dst, kv)
		}
	}
	return dst
}

type otelSpan struct {
	span        trace.Span
	observer    *otelObserver
	ctx         context.Context
	component   string
	operation   string
	metricAttrs []attribute.KeyValue
	start       time.Time
	endOnce     sync.Once
}

// End 结束观测并记录结果，重复调用只记录一次。
func (s *otelSpan) End(result Result) {
	if s == nil {
		return
	}

	s.endOnce.Do(func() {
		status := result.status()

		switch {
		case status == StatusError && result.Err != nil:
			s.span.RecordError(result.Err)
			s.span.SetStatus(codes.Error, result.Err.Error())
		case status == StatusError:
			s.span.SetStatus(codes.Error, "operation failed")
		default:
			// 显式 StatusOK 但带 Err（如 not found）：记录事件，不标红
			if result.Err != nil {
				s.span.RecordError(result.Err)
			}
			s.span.SetStatus(codes.Ok, "")
		}

		if len(result.Attrs) > 0 {
			s.span.SetAttributes(attrsToOTel(result.Attrs)...)
		}
		s.span.End()

		// 请求 ctx 可能已取消，指标仍需记录
		metricsCtx := context.WithoutCancel(s.ctx)
		attrs := metricAttrs(s.component, s.operation, status)
		attrs = s.observer.pickMetricAttrs(append(attrs, s.metricAttrs...), result.Attrs)
		set := metric.WithAttributes(attrs...)
		s.observer.total.Add(metricsCtx, 1, set)
		s.observer.duration.Record(metricsCtx, time.Since(s.start).Seconds(), set)
	})
}

func mapSpanKind(kind Kind) trace.SpanKind {
	switch kind {
	case KindServer:
		return trace.SpanKindServer
	case KindClient:
		return trace.SpanKindClient
	default:
		return trace.SpanKindInternal
	}
}

func metricAttrs(component, operation string, status Status) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("component", component),
		attribute.String("operation", operation),
		attribute.String("status", string(status)),
	}
}

func attrsToOTel(attrs []Attr) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	converted := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if attr.Key == "" || attr.Value == nil {
			continue
		}
		converted = append(converted, toKeyValue(attr))
	}
	return converted
}

func toKeyValue(attr Attr) attribute.KeyValue {
	switch v := attr.Value.(type) {
	case string:
		return attribute.String(attr.Key, v)
	case bool:
		return attribute.Bool(attr.Key, v)
	case int:
		return attribute.Int(attr.Key, v)
	case int64:
		return attribute.Int64(attr.Key, v)
	case uint64:
		if v <= math.MaxInt64 {
			return attribute.Int64(attr.Key, int64(v))
		}
		return attribute.String(attr.Key, fmt.Sprint(v))
	case float64:
		return attribute.Float64(attr.Key, v)
	case time.Duration:
		return attribute.Int64(attr.Key, v.Nanoseconds())
	default:
		return attribute.String(attr.Key, fmt.Sprint(v))
	}
}
