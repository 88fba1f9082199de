package xrun

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/itemcache/pkg/observability/xlog"
)

// Service 长期运行的服务，ctx 取消后应尽快返回。
type Service func(ctx context.Context) error

// NamedService 带名称的服务，名称用于日志。
type NamedService struct {
	Name string
	Run  Service
}

// Named 给服务命名
func Named(name string, fn Service) NamedService {
	return NamedService{Name: name, Run: fn}
}

// Group 服务组。任一服务返回错误即取消组 ctx。
type Group struct {
	eg     *errgroup.Group
	ctx    context.Context
	cancel context.CancelCauseFunc
	opts   *groupOptions
}

// NewGroup 创建服务组，返回的 ctx 在组取消时结束。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(ctx)
	return &Group{eg: eg, ctx: egCtx, cancel: cancel, opts: o}, egCtx
}

// Go 启动一个服务。fn 为 nil 时组以 ErrNilFunc 失败。
func (g *Group) Go(name string, fn Service) {
	logger := g.opts.logger.With(xlog.Component(g.opts.name), xlog.Operation(name))
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		logger.Debug(g.ctx, "service starting")
		err := fn(g.ctx)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			logger.Debug(g.ctx, "service stopped")
		default:
			logger.Error(g.ctx, "service failed", xlog.Err(err))
		}
		return err
	})
}

// Cancel 以 cause 取消组，nil 等价于 context.Canceled。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Wait 等待所有服务退出。
//
// 由信号或 Cancel(nil) 导致的退出返回 nil；其余情况返回第一个服务错误。
func (g *Group) Wait() error {
	err := g.eg.Wait()
	cause := context.Cause(g.ctx)
	g.cancel(nil)

	if err == nil || errors.Is(err, context.Canceled) {
		var sigErr *SignalError
		if cause != nil && !errors.Is(cause, context.Canceled) && !errors.As(cause, &sigErr) {
			return cause
		}
		return nil
	}
	return err
}

// testSigChan 测试注入，非 nil 时替代 signal.Notify。
var testSigChan chan os.Signal

// Run 启动服务组并监听退出信号，阻塞直到全部服务退出。
func Run(ctx context.Context, opts []Option, services ...NamedService) error {
	g, gctx := NewGroup(ctx, opts...)

	if !g.opts.noSignalHandler {
		sigCh := testSigChan
		if sigCh == nil {
			signals := g.opts.signals
			if len(signals) == 0 {
				signals = DefaultSignals()
			}
			sigCh = make(chan os.Signal, 1)
			signal.Notify(sigCh, signals...)
			defer signal.Stop(sigCh)
		}
		g.eg.Go(func() error {
			select {
			case sig := <-sigCh:
				g.opts.logger.Info(gctx, "shutdown signal received",
					xlog.Component(g.opts.name), slog.String("signal", sig.String()))
				g.cancel(&SignalError{Signal: sig})
			case <-gctx.Done():
			}
			return nil
		})
	}

	for _, s := range services {
		g.Go(s.Name, s.Run)
	}
	return g.Wait()
}

// =============================================================================
// 常用服务
// =============================================================================

// HTTPServerInterface *http.Server 满足此接口
type HTTPServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServer 将 HTTP server 包装为服务。ctx 取消后在 shutdownTimeout 内优雅关闭。
func HTTPServer(server HTTPServerInterface, shutdownTimeout time.Duration) Service {
	return func(ctx context.Context) error {
		if server == nil {
			return ErrNilServer
		}
		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()

		select {
		case err := <-errCh:
			return ignoreServerClosed(err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ignoreServerClosed(<-errCh)
	}
}

// Ticker 每隔 interval 调用一次 fn，fn 返回错误时服务失败。
func Ticker(interval time.Duration, fn func(ctx context.Context) error) Service {
	return func(ctx context.Context) error {
		if interval <= 0 {
			return ErrInvalidInterval
		}
		if fn == nil {
			return ErrNilFunc
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				if err := fn(ctx); err != nil {
					return err
				}
			}
		}
	}
}

func ignoreServerClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
