package xid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/sonyflake/v2"
)

var (
	// ErrNoMachineID 无法确定机器 ID。
	ErrNoMachineID = errors.New("xid: no machine id")

	// ErrOverTimeLimit 时间分量溢出，生成器无法继续生成 ID，不可恢复。
	ErrOverTimeLimit = errors.New("xid: time component overflow")

	// ErrInvalidID 解析出的 ID 无效（非 base36 或非正数）。
	ErrInvalidID = errors.New("xid: invalid id")

	// ErrNilContext context 参数为 nil。
	ErrNilContext = errors.New("xid: nil context")

	// ErrInvalidConfig 配置参数无效，或 sonyflake 初始化失败。
	ErrInvalidConfig = errors.New("xid: invalid config")
)

const (
	// DefaultRetryAttempts 时钟回拨时的默认重试次数
	DefaultRetryAttempts = 50

	// DefaultRetryInterval 默认重试间隔（sonyflake 时间精度为 10ms）
	DefaultRetryInterval = 10 * time.Millisecond
)

// Option 配置 Generator。
type Option func(*options)

type options struct {
	machineID     func() (uint16, error)
	retryAttempts uint
	retryInterval time.Duration
}

// WithMachineID 设置机器 ID 获取函数，默认 [DefaultMachineID]。
func WithMachineID(fn func() (uint16, error)) Option {
	return func(o *options) {
		o.machineID = fn
	}
}

// WithRetry 设置 NewWithRetry 的重试次数与间隔。
func WithRetry(attempts uint, interval time.Duration) Option {
	return func(o *options) {
		o.retryAttempts = attempts
		o.retryInterval = interval
	}
}

// Generator 唯一 ID 生成器，并发安全。
type Generator struct {
	generateID    func() (int64, error)
	retryAttempts uint
	retryInterval time.Duration
}

// NewGenerator 创建新的 ID 生成器实例。
func NewGenerator(opts ...Option) (*Generator, error) {
	cfg := options{
		machineID:     DefaultMachineID,
		retryAttempts: DefaultRetryAttempts,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.machineID == nil || cfg.retryAttempts == 0 || cfg.retryInterval < 0 {
		return nil, fmt.Errorf("%w: machine id func, attempts > 0 and interval >= 0 required", ErrInvalidConfig)
	}

	machineID := cfg.machineID
	sf, err := sonyflake.New(sonyflake.Settings{
		MachineID: func() (int, error) {
			id, err := machineID()
			return int(id), err
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Generator{
		generateID:    sf.NextID,
		retryAttempts: cfg.retryAttempts,
		retryInterval: cfg.retryInterval,
	}, nil
}

// New 生成一个新 ID，不重试。
func (g *Generator) New() (int64, error) {
	id, err := g.generateID()
	if errors.Is(err, sonyflake.ErrOverTimeLimit) {
		return 0, ErrOverTimeLimit
	}
	return id, err
}

// NewWithRetry 生成一个新 ID，时钟回拨等可恢复错误时在 ctx 允许范围内重试。
func (g *Generator) NewWithRetry(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, ErrNilContext
	}
	return retry.NewWithData[int64](
		retry.Context(ctx),
		retry.Attempts(g.retryAttempts),
		retry.Delay(g.retryInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !errors.Is(err, ErrOverTimeLimit) }),
	).Do(g.New)
}

// NewString 生成 base36 字符串形式的 ID。
func (g *Generator) NewString() (string, error) {
	id, err := g.New()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 36), nil
}

// NewStringWithRetry 是 NewWithRetry 的字符串版本。
func (g *Generator) NewStringWithRetry(ctx context.Context) (string, error) {
	id, err := g.NewWithRetry(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 36), nil
}

// Parse 解析 base36 字符串形式的 ID。
func Parse(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 36, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidID, s, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

var (
	defaultOnce sync.Once
	defaultGen  *Generator
	defaultErr  error
)

func defaultGenerator() (*Generator, error) {
	defaultOnce.Do(func() {
		defaultGen, defaultErr = NewGenerator()
	})
	return defaultGen, defaultErr
}

// NewString 使用包级默认生成器生成字符串 ID。
func NewString() (string, error) {
	g, err := defaultGenerator()
	if err != nil {
		return "", err
	}
	return g.NewString()
}

// NewStringWithRetry 使用包级默认生成器生成字符串 ID，可恢复错误时重试。
func NewStringWithRetry(ctx context.Context) (string, error) {
	g, err := defaultGenerator()
	if err != nil {
		return "", err
	}
	return g.NewStringWithRetry(ctx)
}
