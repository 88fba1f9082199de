package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/itemcache/internal/app"
	"github.com/omeyang/itemcache/internal/item"
	"github.com/omeyang/itemcache/pkg/config/xconf"
	"github.com/omeyang/itemcache/pkg/observability/xlog"
	"github.com/omeyang/itemcache/pkg/storage/xstampede"
	"github.com/omeyang/itemcache/pkg/util/xjson"
)

// closeTimeout 关闭资源的最长等待
const closeTimeout = 15 * time.Second

// exitError 表示输出已完成、只需设置退出码的场景。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "exit " + strconv.Itoa(e.code) }

// usageError 参数错误，退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func createCommands() []*cli.Command {
	return []*cli.Command{
		createServeCommand(),
		createGetCommand(),
		createCheckCommand(),
		createCurveCommand(),
	}
}

// loadConfig 读取 --config，未指定时返回默认配置与 nil 来源。
func loadConfig(cmd *cli.Command) (app.Config, xconf.Config, error) {
	path := cmd.String("config")
	if path == "" {
		cfg := app.DefaultConfig()
		return cfg, nil, cfg.Validate()
	}
	src, err := xconf.New(path)
	if err != nil {
		return app.Config{}, nil, err
	}
	cfg, err := app.Load(src)
	if err != nil {
		return app.Config{}, nil, err
	}
	return cfg, src, nil
}

func closeApp(a *app.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return a.Close(ctx)
}

// =============================================================================
// serve
// =============================================================================

func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "启动 HTTP 服务，收到 SIGINT/SIGTERM 后优雅退出",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, src, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			var opts []app.Option
			if src != nil {
				opts = append(opts, app.WithConfigSource(src))
			}
			a, err := app.New(ctx, cfg, opts...)
			if err != nil {
				return err
			}
			xlog.SetDefault(a.Logger())
			defer xlog.ResetDefault()

			runErr := a.Run(ctx)
			return errors.Join(runErr, closeApp(a))
		},
	}
}

// =============================================================================
// get
// =============================================================================

func createGetCommand() *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "通过缓存读取一个商品并以 JSON 打印",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "id",
				Aliases:  []string{"i"},
				Usage:    "商品 id",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "同时打印 Controller 计数",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := item.ParseID(cmd.String("id"))
			if err != nil {
				return usagef("%v", err)
			}
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeApp(a) }()
			return printItem(ctx, cmd.Root().Writer, a.Cache(), id, cmd.Bool("stats"))
		},
	}
}

// printItem 读取并打印商品，未找到时退出码 3。
func printItem(ctx context.Context, w io.Writer, cache item.Reader, id int64, withStats bool) error {
	it, err := cache.Get(ctx, id)
	if errors.Is(err, xstampede.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "item %d not found\n", id)
		return &exitError{code: 3}
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, xjson.Pretty(it))
	if withStats {
		fmt.Fprintln(w, xjson.Pretty(cache.Stats()))
	}
	return nil
}

// =============================================================================
// check
// =============================================================================

func createCheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "校验配置并打印生效的回源策略",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := cfg.Stampede.Build()
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			fmt.Fprintf(w, "policy:    %s\n", p.Mode)
			fmt.Fprintf(w, "cache:     %s (prefix %q)\n", cfg.Cache.Backend, cfg.Cache.KeyPrefix)
			fmt.Fprintf(w, "lock:      %s\n", cfg.Lock.Backend)
			fmt.Fprintf(w, "backing:   %s\n", cfg.Backing.Kind)
			fmt.Fprintf(w, "max block: %s\n", p.MaxBlock())
			return nil
		},
	}
}

// =============================================================================
// curve
// =============================================================================

func createCurveCommand() *cli.Command {
	return &cli.Command{
		Name:  "curve",
		Usage: "打印概率提前刷新在各个条目年龄下的刷新概率",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "ttl", Usage: "物理过期时间", Value: 120 * time.Second},
			&cli.DurationFlag{Name: "soft", Usage: "开始概率刷新的年龄", Value: 80 * time.Second},
			&cli.FloatFlag{Name: "alpha", Usage: "曲线陡峭度，<= 0 为线性", Value: xstampede.DefaultAlpha},
			&cli.DurationFlag{Name: "step", Usage: "年龄步长", Value: 10 * time.Second},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			ttl, soft, step := cmd.Duration("ttl"), cmd.Duration("soft"), cmd.Duration("step")
			alpha := cmd.Float("alpha")
			if err := xstampede.Probabilistic(ttl, soft, alpha).Validate(); err != nil {
				return usagef("%v", err)
			}
			if step <= 0 {
				return usagef("step must be positive")
			}
			printCurve(cmd.Root().Writer, ttl, soft, step, alpha)
			return nil
		},
	}
}

func printCurve(w io.Writer, ttl, soft, step time.Duration, alpha float64) {
	fmt.Fprintf(w, "%10s  %s\n", "age", "p(refresh)")
	for age := time.Duration(0); age <= ttl; age += step {
		fmt.Fprintf(w, "%10s  %.4f\n", age, xstampede.RefreshProbability(age, soft, ttl, alpha))
	}
}
