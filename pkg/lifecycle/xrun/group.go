package xrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xvoice/pkg/observability/xlog"
)

// Group 是带名称与日志的 errgroup：任一成员返回错误即取消其余成员。
//
// 成员在组 ctx 结束后返回的 context.Canceled 视为正常退出，
// 因此 Wait 只返回真正导致关闭的那个错误。
type Group struct {
	eg     *errgroup.Group
	ctx    context.Context
	cancel context.CancelCauseFunc
	opts   *options
	logger xlog.Logger
}

// NewGroup 创建派生自 ctx 的 Group。
func NewGroup(ctx context.Context, opts ...Option) *Group {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(ctx)
	return &Group{
		eg:     eg,
		ctx:    egCtx,
		cancel: cancel,
		opts:   o,
		logger: o.logger.With(xlog.Component(o.name)),
	}
}

// Go 以 name 启动一个成员。fn 为 nil 时该成员立即以 ErrNilFunc 失败。
// fn 中的 panic 被转换为错误，不会使进程崩溃。
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() (err error) {
		if fn == nil {
			return fmt.Errorf("%w: %s", ErrNilFunc, name)
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("xrun: %s panicked: %v", name, r)
				g.logger.Error(g.ctx, "service panicked",
					xlog.Operation(name), xlog.Err(err), slog.String("stack", string(debug.Stack())))
			}
		}()

		start := time.Now()
		g.logger.Debug(g.ctx, "service started", xlog.Operation(name))
		err = fn(g.ctx)
		if err != nil && g.ctx.Err() != nil && isContextErr(err) {
			err = nil
		}
		if err != nil && !errors.Is(err, ErrSignal) {
			g.logger.Error(g.ctx, "service failed",
				xlog.Operation(name), xlog.Err(err), xlog.Duration(time.Since(start)))
			return fmt.Errorf("xrun: %s: %w", name, err)
		}
		g.logger.Debug(g.ctx, "service stopped", xlog.Operation(name), xlog.Duration(time.Since(start)))
		return err
	})
}

// Context 返回组 ctx，在首个成员失败、Cancel 或父 ctx 结束时取消。
func (g *Group) Context() context.Context {
	return g.ctx
}

// Cancel 以 cause 取消整个组。成员随后返回的 ctx 错误不计为失败。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Wait 等待所有成员结束，返回首个失败成员的错误。
func (g *Group) Wait() error {
	err := g.eg.Wait()
	g.cancel(nil)
	return err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Service 是交给 Run 的命名服务。
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

// Named 构造 Service。
func Named(name string, run func(ctx context.Context) error) Service {
	return Service{Name: name, Run: run}
}

// Run 并发运行 services 直到全部结束，或其中一个失败、收到信号、ctx 取消。
//
// 收到信号时返回 *SignalError（匹配 ErrSignal）；父 ctx 取消属于正常关闭，返回 nil。
// 所有服务都正常返回时，Run 也随之返回，不再等待信号。
func Run(ctx context.Context, opts []Option, services ...Service) error {
	g := NewGroup(ctx, opts...)

	var wg sync.WaitGroup
	for _, s := range services {
		wg.Add(1)
		run := s.Run
		g.Go(s.Name, func(ctx context.Context) error {
			defer wg.Done()
			if run == nil {
				return ErrNilFunc
			}
			return run(ctx)
		})
	}

	if !g.opts.noSignal {
		servicesDone := make(chan struct{})
		go func() {
			wg.Wait()
			close(servicesDone)
		}()
		g.Go("signal", func(ctx context.Context) error {
			return g.waitSignal(ctx, servicesDone)
		})
	}

	g.logger.Info(g.ctx, "services running", xlog.Count(int64(len(services))))
	err := g.Wait()
	g.logger.Info(context.WithoutCancel(g.ctx), "services stopped", xlog.Err(err))
	return err
}

func (g *Group) waitSignal(ctx context.Context, servicesDone <-chan struct{}) error {
	src := g.opts.sigSource
	if src == nil {
		signals := g.opts.signals
		if len(signals) == 0 {
			signals = DefaultSignals()
		}
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, signals...)
		defer signal.Stop(ch)
		src = ch
	}

	select {
	case sig := <-src:
		g.logger.Info(ctx, "received signal, shutting down", slog.String("signal", sig.String()))
		return &SignalError{Signal: sig}
	case <-ctx.Done():
		return nil
	case <-servicesDone:
		return nil
	}
}
