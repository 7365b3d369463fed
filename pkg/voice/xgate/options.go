package xgate

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/xvoice/pkg/observability/xlog"
	"github.com/omeyang/xvoice/pkg/util/xid"
	"github.com/omeyang/xvoice/pkg/util/xkeylock"
)

const (
	// DefaultTimeout 请求未指定超时时使用的等待上限。
	DefaultTimeout = 30 * time.Second

	// DefaultQueueThreshold 等待超过该时长的请求计为排队请求。
	DefaultQueueThreshold = 100 * time.Millisecond
)

// Option 定义 Gate 可选配置。
type Option func(*options)

type options struct {
	defaultTimeout time.Duration
	queueThreshold time.Duration
	logger         xlog.Logger
	meterProvider  metric.MeterProvider
	locker         xkeylock.Locker
	lockerOpts     []xkeylock.Option
	strict         bool
	newRequestID   func() (string, error)
}

func defaultOptions() options {
	return options{
		defaultTimeout: DefaultTimeout,
		queueThreshold: DefaultQueueThreshold,
		newRequestID:   xid.NewString,
	}
}

// WithDefaultTimeout 设置 Request.Timeout <= 0 时使用的等待上限，必须为正。
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		o.defaultTimeout = d
	}
}

// WithQueueThreshold 设置排队判定阈值，不能为负。
func WithQueueThreshold(d time.Duration) Option {
	return func(o *options) {
		o.queueThreshold = d
	}
}

// WithLogger 设置日志。未设置时丢弃所有日志。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMeterProvider 设置 OTel MeterProvider。未设置时不导出指标。
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithLockerOptions 设置 Gate 内部创建注册表时使用的选项（分片数、key 上限、空闲回收）。
func WithLockerOptions(opts ...xkeylock.Option) Option {
	return func(o *options) {
		o.lockerOpts = append(o.lockerOpts, opts...)
	}
}

// WithLocker 使用外部注册表。设置后 WithLockerOptions 不生效，
// Gate.Close 仍会关闭该注册表。
func WithLocker(l xkeylock.Locker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithStrict 设置为 true 时，持有者不一致直接 panic。
// 测试二进制中总是 panic。
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithRequestIDGenerator 设置 Request.RequestID 为空时的 ID 生成函数，默认 xid.NewString。
func WithRequestIDGenerator(fn func() (string, error)) Option {
	return func(o *options) {
		if fn != nil {
			o.newRequestID = fn
		}
	}
}

func (o *options) validate() error {
	if o.defaultTimeout <= 0 {
		return fmt.Errorf("%w: default timeout must be positive, got %s", ErrInvalidOption, o.defaultTimeout)
	}
	if o.queueThreshold < 0 {
		return fmt.Errorf("%w: queue threshold must be non-negative, got %s", ErrInvalidOption, o.queueThreshold)
	}
	return nil
}
