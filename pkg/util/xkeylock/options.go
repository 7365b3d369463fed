package xkeylock

import "fmt"

const (
	defaultShardCount = 32
	maxShardCount     = 1 << 16 // 65536
)

// Option 定义 Locker 可选配置。
type Option func(*options)

type options struct {
	maxKeys    int
	shardCount int
	evictIdle  bool
	shardMask  uint64 // validate() 计算，供 getShard 使用
}

func defaultOptions() options {
	return options{
		shardCount: defaultShardCount,
	}
}

// WithMaxKeys 设置最大 key 数量。
// 达到上限时，新 key 的 Acquire/TryAcquire 返回 [ErrMaxKeysExceeded]。
// n <= 0 表示不限制（默认）。
func WithMaxKeys(n int) Option {
	// 在闭包外归一化，避免闭包写捕获变量导致并发复用时的数据竞争。
	if n < 0 {
		n = 0
	}
	return func(o *options) {
		o.maxKeys = n
	}
}

// WithShardCount 设置分片数量。
// n 必须为正整数且为 2 的幂，上限 65536，否则 New 返回 [ErrInvalidShardCount]。默认 32。
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shardCount = n
	}
}

// WithEvictIdle 设置是否回收空闲条目。
//
// 启用后，条目在既无持有者也无等待者时立即从 map 删除，下次引用重新创建。
// 默认关闭：条目一旦创建就一直存活，直到被 Remove 显式移除。
func WithEvictIdle(enable bool) Option {
	return func(o *options) {
		o.evictIdle = enable
	}
}

func (o *options) validate() error {
	sc := o.shardCount
	if sc <= 0 || sc > maxShardCount || sc&(sc-1) != 0 {
		return fmt.Errorf("%w: must be a positive power of 2 (max %d), got %d",
			ErrInvalidShardCount, maxShardCount, sc)
	}
	// sc ∈ [1, maxShardCount] 且为 2 的幂，int→uint64 转换安全。
	o.shardMask = uint64(sc - 1)
	return nil
}
