package xsynth

import (
	"fmt"
	"time"

	"github.com/omeyang/xvoice/pkg/observability/xlog"
	"github.com/omeyang/xvoice/pkg/observability/xmetrics"
)

// 服务默认值
const (
	DefaultCacheSize          = 256
	DefaultRetryDelay         = 50 * time.Millisecond
	DefaultBreakerFailures    = 5
	DefaultBreakerOpenTimeout = 30 * time.Second
)

// Option 配置 Service。
type Option func(*options)

type options struct {
	chunkSize      int
	cacheSize      int
	retryAttempts  uint
	retryDelay     time.Duration
	breakerName    string
	breakerFails   uint32
	breakerTimeout time.Duration
	observer       xmetrics.Observer
	logger         xlog.Logger
}

func defaultOptions() options {
	return options{
		chunkSize:      DefaultChunkSize,
		cacheSize:      DefaultCacheSize,
		retryDelay:     DefaultRetryDelay,
		breakerName:    "xsynth-engine",
		breakerFails:   DefaultBreakerFailures,
		breakerTimeout: DefaultBreakerOpenTimeout,
	}
}

// WithChunkSize 设置长文本切块的最大长度，必须为正。
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// WithCacheSize 设置音频缓存容量。0 关闭缓存，不能为负。
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithRetry 设置准入超时后的额外重试次数与重试间隔。
// attempts 为 0 表示不重试。引擎错误从不重试。
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(o *options) {
		o.retryAttempts = attempts
		o.retryDelay = delay
	}
}

// WithBreaker 设置熔断器：连续 failures 次引擎失败后打开，openTimeout 后进入半开。
func WithBreaker(name string, failures uint32, openTimeout time.Duration) Option {
	return func(o *options) {
		if name != "" {
			o.breakerName = name
		}
		o.breakerFails = failures
		o.breakerTimeout = openTimeout
	}
}

// WithObserver 设置观测器，默认不观测。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithLogger 设置日志，默认丢弃。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func (o *options) validate() error {
	switch {
	case o.chunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidOption, o.chunkSize)
	case o.cacheSize < 0:
		return fmt.Errorf("%w: cache size must be non-negative, got %d", ErrInvalidOption, o.cacheSize)
	case o.retryDelay < 0:
		return fmt.Errorf("%w: retry delay must be non-negative, got %s", ErrInvalidOption, o.retryDelay)
	case o.breakerFails == 0:
		return fmt.Errorf("%w: breaker failure threshold must be positive", ErrInvalidOption)
	case o.breakerTimeout <= 0:
		return fmt.Errorf("%w: breaker open timeout must be positive, got %s", ErrInvalidOption, o.breakerTimeout)
	}
	return nil
}
