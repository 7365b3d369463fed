package xrun

import (
	"os"
	"syscall"

	"github.com/omeyang/xvoice/pkg/observability/xlog"
)

// Option 配置 Group。
type Option func(*options)

type options struct {
	name     string
	logger   xlog.Logger
	signals  []os.Signal
	noSignal bool
	// sigSource 测试用信号源，替代 signal.Notify。
	sigSource <-chan os.Signal
}

func defaultOptions() *options {
	return &options{
		name:   "xrun",
		logger: xlog.Discard(),
	}
}

// DefaultSignals 返回默认监听的信号：SIGHUP、SIGINT、SIGTERM、SIGQUIT。
func DefaultSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}

// WithName 设置 Group 名称，出现在生命周期日志中。
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger 设置生命周期日志，默认丢弃。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSignals 设置 Run 监听的信号。空列表使用 DefaultSignals。
func WithSignals(signals ...os.Signal) Option {
	copied := append([]os.Signal(nil), signals...)
	return func(o *options) {
		o.signals = copied
	}
}

// WithoutSignalHandler 让 Run 不监听信号，由调用方通过 ctx 控制退出。
func WithoutSignalHandler() Option {
	return func(o *options) {
		o.noSignal = true
	}
}

// withSignalSource 用给定通道替代进程信号，仅供测试注入。
func withSignalSource(ch <-chan os.Signal) Option {
	return func(o *options) {
		o.sigSource = ch
	}
}
