package xrun

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// DefaultShutdownTimeout 是 HTTPServer 的默认优雅关闭时限。
const DefaultShutdownTimeout = 10 * time.Second

// Server 是 HTTPServer 需要的最小接口，*http.Server 满足它。
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var _ Server = (*http.Server)(nil)

// HTTPServer 把 srv 包装为服务函数：ctx 结束时在 shutdownTimeout 内优雅关闭。
// shutdownTimeout <= 0 时使用 DefaultShutdownTimeout。
// http.ErrServerClosed 视为正常退出。
func HTTPServer(srv Server, shutdownTimeout time.Duration) func(ctx context.Context) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return func(ctx context.Context) error {
		if srv == nil {
			return ErrNilServer
		}
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		shutdownErr := srv.Shutdown(shutdownCtx)
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Join(err, shutdownErr)
		}
		return shutdownErr
	}
}

// Ticker 每隔 interval 调用一次 fn，直到 ctx 结束或 fn 返回错误。
// immediate 为 true 时启动后先调用一次。
func Ticker(interval time.Duration, immediate bool, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if interval <= 0 {
			return ErrInvalidInterval
		}
		if fn == nil {
			return ErrNilFunc
		}
		if immediate {
			if err := fn(ctx); err != nil {
				return err
			}
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
