// Package xrun 基于 errgroup 管理一组长期运行的服务（HTTP server、配置监视、周期任务）。
//
// 任一服务返回错误或收到退出信号时，组内 ctx 被取消，其余服务优雅退出：
//
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger)},
//		xrun.Named("http", xrun.HTTPServer(srv, 10*time.Second)),
//		xrun.Named("config-watch", watcher.Run),
//	)
//
// 由信号触发的退出返回 nil；[SignalError] 作为 cause 记录在 ctx 上。
package xrun
