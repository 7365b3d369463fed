package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xvoice/pkg/config/xconf"
	"github.com/omeyang/xvoice/pkg/lifecycle/xrun"
	"github.com/omeyang/xvoice/pkg/observability/xlog"
)

func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "启动 TTS HTTP 服务",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（.yaml/.yml/.json），为空时使用内置默认值",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "覆盖 http.addr",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdServe(ctx, cmd.String("config"), cmd.String("addr"), cmd.Root().Writer)
		},
	}
}

// cmdServe 运行 HTTP 服务、配置监视与周期统计，直到收到信号或 ctx 结束。
func cmdServe(ctx context.Context, configPath, addr string, out io.Writer) error {
	cfg, appCfg, err := loadConfig(configPath)
	if err != nil {
		return &usageError{err: err}
	}
	if addr != "" {
		appCfg.HTTP.Addr = addr
	}

	logger, closeLog, err := newLogger(appCfg.Log, out)
	if err != nil {
		return &usageError{err: err}
	}
	defer func() { _ = closeLog() }()

	a, err := newApp(appCfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "close app", xlog.Err(err))
		}
	}()

	srv := &http.Server{
		Addr:              appCfg.HTTP.Addr,
		Handler:           newHandler(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	services := []xrun.Service{
		xrun.Named("http", xrun.HTTPServer(srv, appCfg.HTTP.ShutdownTimeout)),
	}
	if configPath != "" {
		watcher, err := xconf.NewWatcher(cfg, reloadLogLevel(ctx, logger))
		if err != nil {
			return err
		}
		services = append(services, xrun.Named("config-watch", watcher.Run))
	}
	if appCfg.Stats.Interval > 0 {
		services = append(services, xrun.Named("stats", xrun.Ticker(appCfg.Stats.Interval, false, a.logStats)))
	}

	logger.Info(ctx, "xvoice serving",
		slog.String("addr", appCfg.HTTP.Addr),
		xlog.Duration(appCfg.Gate.DefaultTimeout),
		slog.String("config", configPath))

	err = xrun.Run(ctx, []xrun.Option{xrun.WithName("xvoice"), xrun.WithLogger(logger)}, services...)
	if errors.Is(err, xrun.ErrSignal) {
		return nil
	}
	return err
}

// reloadLogLevel 返回配置重载回调：只有 log.level 支持热更新，其余字段需重启生效。
func reloadLogLevel(ctx context.Context, logger xlog.LoggerWithLevel) xconf.WatchCallback {
	return func(cfg xconf.Config, err error) {
		if err != nil {
			logger.Warn(ctx, "config reload failed, keeping previous config", xlog.Err(err))
			return
		}
		var lc LogConfig
		if err := cfg.Unmarshal("log", &lc); err != nil {
			logger.Warn(ctx, "decode reloaded log config", xlog.Err(err))
			return
		}
		level, err := xlog.ParseLevel(lc.Level)
		if err != nil {
			logger.Warn(ctx, "invalid log level in reloaded config", xlog.Err(err))
			return
		}
		if level != logger.GetLevel() {
			logger.SetLevel(level)
			logger.Info(ctx, "log level changed", slog.String("level", level.String()))
		}
	}
}
