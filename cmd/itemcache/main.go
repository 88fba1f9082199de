// itemcache 是商品读缓存服务。
//
// 用法:
//
//	itemcache [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config   配置文件路径（yaml 或 json），为空时使用默认配置
//
// 命令:
//
//	serve          启动 HTTP 服务
//	get            通过缓存读取一个商品并打印
//	check          校验配置并打印生效的回源策略
//	curve          打印概率提前刷新的刷新概率曲线
//
// 退出码:
//
//	0: 成功
//	1: 执行失败
//	2: 参数错误
//	3: 商品不存在（get 命令）
//
// 示例:
//
//	itemcache -c config.yaml serve
//	itemcache -c config.yaml get --id 42
//	itemcache curve --ttl 120s --soft 80s --alpha 1.5 --step 5s
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args))
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "itemcache",
		Usage:   "防击穿的商品读缓存服务",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径",
				Sources: cli.EnvVars("ITEMCACHE_CONFIG"),
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		// 禁止 urfave/cli 直接调用 os.Exit，由 run 统一映射退出码
		ExitErrHandler: func(_ context.Context, cmd *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(cmd.Root().ErrWriter, err)
			}
		},
	}
}

func run(ctx context.Context, args []string) int {
	return exitCode(createApp().Run(ctx, args))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	if isCLIUsageError(err) {
		return 2
	}
	fmt.Fprintf(os.Stderr, "错误: %v\n", err)
	return 1
}

// isCLIUsageError 识别 urfave/cli 的参数解析错误。
// cli 对这类错误没有导出类型，只能按消息匹配。
func isCLIUsageError(err error) bool {
	if _, ok := err.(cli.ExitCoder); ok {
		return true
	}
	msg := err.Error()
	for _, prefix := range []string{"flag provided but not defined", "invalid value", "Required flag"} {
		if strings.Contains(msg, prefix) {
			return true
		}
	}
	return false
}
