package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/omeyang/xvoice/pkg/observability/xlog"
	"github.com/omeyang/xvoice/pkg/observability/xmetrics"
	"github.com/omeyang/xvoice/pkg/util/xkeylock"
	"github.com/omeyang/xvoice/pkg/voice/xgate"
	"github.com/omeyang/xvoice/pkg/voice/xsynth"
)

// newLogger 按配置构建日志。cfg.File 非空时 out 被忽略。
func newLogger(cfg LogConfig, out io.Writer) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetOutput(out).
		SetLevelString(cfg.Level).
		SetFormat(cfg.Format).
		SetAttrs(slog.String("service", "xvoice"))
	if cfg.File != "" {
		b = b.SetRotation(cfg.File)
	}
	return b.Build()
}

// app 聚合一个进程内的门控、合成服务与遥测。
type app struct {
	logger xlog.Logger
	gate   *xgate.Gate
	engine *xsynth.SimEngine
	synth  *xsynth.Service

	telemetry *telemetry
}

// newApp 按配置装配组件。engine 为 nil 时使用按配置延迟的 SimEngine。
func newApp(cfg *AppConfig, logger xlog.Logger, engine xsynth.Synthesizer) (*app, error) {
	tel, err := newTelemetry(logger)
	if err != nil {
		return nil, err
	}
	a := &app{logger: logger, telemetry: tel}

	lockerOpts := []xkeylock.Option{
		xkeylock.WithShardCount(cfg.Gate.Shards),
		xkeylock.WithEvictIdle(cfg.Gate.EvictIdle),
	}
	if cfg.Gate.MaxKeys > 0 {
		lockerOpts = append(lockerOpts, xkeylock.WithMaxKeys(cfg.Gate.MaxKeys))
	}
	gate, err := xgate.New(
		xgate.WithDefaultTimeout(cfg.Gate.DefaultTimeout),
		xgate.WithQueueThreshold(cfg.Gate.QueueThreshold),
		xgate.WithLockerOptions(lockerOpts...),
		xgate.WithLogger(logger),
		xgate.WithMeterProvider(tel.meterProvider),
	)
	if err != nil {
		return nil, errors.Join(err, tel.Shutdown(context.Background()))
	}
	a.gate = gate

	observer, err := xmetrics.NewOTelObserver(
		xmetrics.WithMeterProvider(tel.meterProvider),
		xmetrics.WithTracerProvider(tel.tracerProvider),
	)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create observer: %w", err), a.Close(context.Background()))
	}

	if engine == nil {
		a.engine = xsynth.NewSimEngine(xsynth.WithDelay(cfg.Synth.EngineDelay))
		engine = a.engine
	}
	synth, err := xsynth.NewService(gate, engine,
		xsynth.WithChunkSize(cfg.Synth.ChunkSize),
		xsynth.WithCacheSize(cfg.Synth.CacheSize),
		xsynth.WithRetry(cfg.Synth.RetryAttempts, cfg.Synth.RetryDelay),
		xsynth.WithBreaker("", cfg.Synth.BreakerFailures, cfg.Synth.BreakerOpenTimeout),
		xsynth.WithObserver(observer),
		xsynth.WithLogger(logger),
	)
	if err != nil {
		return nil, errors.Join(err, a.Close(context.Background()))
	}
	a.synth = synth
	return a, nil
}

// Close 关闭门控并刷新遥测 provider。
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.gate != nil {
		if err := a.gate.Close(); err != nil && !errors.Is(err, xgate.ErrClosed) {
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.telemetry.Shutdown(ctx))
	return errors.Join(errs...)
}

// snapshot 是 /v1/stats 与周期统计日志共用的视图。
type snapshot struct {
	Gate    xgate.Stats       `json:"gate"`
	Cache   xsynth.CacheStats `json:"cache"`
	Breaker string            `json:"breaker"`
}

func (a *app) snapshot() snapshot {
	return snapshot{
		Gate:    a.gate.Stats(),
		Cache:   a.synth.CacheStats(),
		Breaker: a.synth.BreakerState(),
	}
}

// logStats 输出一条统计日志，供 xrun.Ticker 周期调用。
func (a *app) logStats(ctx context.Context) error {
	s := a.snapshot()
	a.logger.Info(ctx, "gate stats",
		slog.Int64("total_requests", s.Gate.TotalRequests),
		slog.Int64("queued_requests", s.Gate.QueuedRequests),
		slog.Int64("timeout_requests", s.Gate.TimeoutRequests),
		slog.Int("active_locks", s.Gate.ActiveLocks),
		slog.Int("active_sessions", s.Gate.ActiveSessions),
		slog.Int64("forced_releases", s.Gate.ForcedReleases),
		slog.Int64("cache_hits", s.Cache.Hits),
		slog.String("breaker", s.Breaker),
	)
	return nil
}
