// Package xmetrics 提供 Observer/Span 抽象，默认实现基于 OpenTelemetry。
//
// 业务代码只依赖 [Observer]，测试中可替换为 [NoopObserver] 或记录型实现。
//
//	obs, _ := xmetrics.NewOTelObserver(xmetrics.WithMetricAttrKeys("policy", "outcome"))
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "xstampede",
//		Operation: "get",
//		Attrs:     []xmetrics.Attr{xmetrics.String("policy", "lock-wait")},
//	})
//	defer func() { span.End(xmetrics.Result{Err: err}) }()
//
// # 指标
//
//   - itemcache.operation.total（计数）
//   - itemcache.operation.duration（秒，直方图）
//
// 固定维度为 component、operation、status。[WithMetricAttrKeys] 可把
// 低基数的 span 属性（如 policy、outcome）提升为指标维度，其余属性只写入 trace。
package xmetrics
