package xkeylock

import "errors"

var (
	// ErrLockNotHeld 表示锁已被释放。
	// Unlock 第二次及后续调用时返回此错误。
	ErrLockNotHeld = errors.New("xkeylock: lock not held")

	// ErrLockOccupied 表示锁被占用（TryAcquire 非阻塞获取失败）。
	ErrLockOccupied = errors.New("xkeylock: lock occupied")

	// ErrLockRevoked 表示条目已被 Remove 强制移除，持有关系随之失效。
	ErrLockRevoked = errors.New("xkeylock: lock revoked")

	// ErrHolderMismatch 表示释放时条目记录的持有者与 Handle 不一致。
	// 正常使用下不会出现，出现即说明调用方纪律存在缺陷。
	ErrHolderMismatch = errors.New("xkeylock: holder mismatch")

	// ErrClosed 表示 Locker 已关闭。
	ErrClosed = errors.New("xkeylock: closed")

	// ErrMaxKeysExceeded 表示已达到最大 key 数量限制。
	ErrMaxKeysExceeded = errors.New("xkeylock: max keys exceeded")

	// ErrInvalidKey 表示 key 为空字符串。
	ErrInvalidKey = errors.New("xkeylock: invalid key")

	// ErrNilContext 表示 Acquire 传入了 nil context。
	ErrNilContext = errors.New("xkeylock: nil context")

	// ErrInvalidShardCount 表示分片数不是 2 的幂或超出上限。
	ErrInvalidShardCount = errors.New("xkeylock: invalid shard count")
)
