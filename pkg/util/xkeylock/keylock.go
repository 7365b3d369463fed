package xkeylock

import (
	"context"
	"io"
)

// Handle 表示一次成功的锁获取。
type Handle interface {
	// Unlock 释放锁。
	// 幂等：第一次调用返回 nil，后续调用返回 [ErrLockNotHeld]。
	// 条目已被 Remove 强制移除时返回 [ErrLockRevoked]（同样只返回一次）。
	Unlock() error

	// Key 返回锁的 key。Unlock 之后仍返回原始值。
	Key() string

	// Holder 返回获取锁时登记的持有者 ID。
	Holder() string

	// Revoked 返回一个通道，条目被 Remove 移除时关闭。
	Revoked() <-chan struct{}
}

// RemoveResult 描述一次 Remove 的结果。
type RemoveResult struct {
	// Key 被移除的 key。
	Key string
	// WasHeld 移除时条目是否处于持有状态（即发生了强制释放）。
	WasHeld bool
	// Holder 被强制释放的持有者 ID，WasHeld 为 false 时为空。
	Holder string
	// Waiters 移除时仍引用该条目的等待者数量，它们会重新解析 key。
	Waiters int
}

// Stats 是注册表的瞬时快照。
type Stats struct {
	// Keys 当前存活的条目数。
	Keys int
	// Held 当前处于持有状态的条目数。
	Held int
	// Created 注册表生命周期内创建过的条目总数（单调递增）。
	Created int64
}

// Locker 提供基于 key 的进程内互斥锁。
// 所有方法都是并发安全的。
type Locker interface {
	io.Closer

	// Acquire 阻塞式获取锁，并登记 holder 为持有者。
	// ctx 取消时返回 ctx.Err()，此时不持有任何东西，无需释放。
	// Locker 已关闭时返回 [ErrClosed]。key 为空返回 [ErrInvalidKey]。
	//
	// 设计决策: 锁是非可重入的，与 sync.Mutex 一致。
	Acquire(ctx context.Context, key, holder string) (Handle, error)

	// TryAcquire 非阻塞获取锁。锁被占用时返回 (nil, [ErrLockOccupied])。
	TryAcquire(key, holder string) (Handle, error)

	// Remove 删除 key 对应的条目；条目处于持有状态时强制释放。
	// key 不存在时返回 (RemoveResult{}, false)。
	Remove(key string) (RemoveResult, bool)

	// Holder 返回 key 当前的持有者，无副作用。
	Holder(key string) (string, bool)

	// IsLocked 报告 key 当前是否被持有，无副作用，不会创建条目。
	IsLocked(key string) bool

	// Len 返回当前存活的条目数量（单次原子读取）。
	Len() int

	// Keys 返回当前存活条目的 key 列表，仅用于调试。
	// 返回值是快照，不保证跨分片原子性。
	Keys() []string

	// Stats 返回注册表快照。
	Stats() Stats
}

// New 创建一个新的 Locker 实例。
// 配置无效时返回错误（如分片数不是 2 的幂）。
func New(opts ...Option) (Locker, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return newKeyLockImpl(&o), nil
}
