// xvoicectl 运行按声音准入的 TTS 服务，或在本地演示门控的竞争行为。
//
// 用法:
//
//	xvoicectl [全局选项] <命令> [命令参数]
//
// 命令:
//
//	serve    启动 HTTP 服务（--config 指定配置文件，log.level 支持热更新）
//	demo     运行三种竞争场景并打印统计
//
// HTTP 接口:
//
//	POST   /v1/tts                        合成，返回小端 PCM16；声音忙时 503 + Retry-After
//	GET    /v1/voices/{voice}/busy        查询声音是否被占用（?session= 指定会话）
//	DELETE /v1/sessions/{session}         清理会话，强制释放其持有
//	GET    /v1/stats                      门控、缓存与熔断器统计
//	GET    /healthz                       存活检查
//
// 退出码:
//
//	0: 成功（包括收到信号后的正常关闭）
//	1: 运行失败
//	2: 参数或配置错误
//
// 示例:
//
//	xvoicectl serve --config /etc/xvoice/xvoice.yaml
//	xvoicectl demo -n 4 --delay 100ms
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// 版本信息，可通过 -ldflags "-X main.Version=..." 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// usageError 表示参数或配置错误，对应退出码 2。
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xvoicectl",
		Usage:     "按声音准入的 TTS 服务",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			createServeCommand(),
			createDemoCommand(),
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，退出码统一由 run 映射。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				_, _ = fmt.Fprintln(stderr, err)
			}
		},
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := createApp(stdout, stderr).Run(ctx, args); err != nil {
		var ue *usageError
		if errors.As(err, &ue) {
			_, _ = fmt.Fprintf(stderr, "参数错误: %v\n", ue)
			return 2
		}
		_, _ = fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}
