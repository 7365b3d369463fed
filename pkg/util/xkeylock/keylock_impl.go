package xkeylock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// keyLockImpl 是 Locker 的分片实现。
type keyLockImpl struct {
	shards   []shard
	mask     uint64
	opts     *options
	closed   atomic.Bool
	keyCount atomic.Int64
	held     atomic.Int64
	created  atomic.Int64
	done     chan struct{}
}

// shard 的 mu 是 map 结构变更的唯一同步点，与 per-key 锁（lockEntry.ch）相互独立。
type shard struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// lockEntry 表示一个 key 的锁条目。
// ch 是 size=1 的 channel，用作互斥量：
//   - 发送成功 = 获取锁
//   - 发送阻塞 = 锁被占用
//   - 接收 = 释放锁
//
// 条目被移除后 ch 保持满状态（封存），任何人都无法再获取它。
type lockEntry struct {
	ch      chan struct{}
	removed chan struct{}

	// 以下字段由所属分片的 mu 保护。
	holder string
	held   bool
	refcnt int // 持有者 + 等待者
	gone   bool
}

// handle 实现 Handle 接口。
type handle struct {
	kl     *keyLockImpl
	key    string
	holder string
	entry  *lockEntry
	done   atomic.Bool
}

func newKeyLockImpl(opts *options) *keyLockImpl {
	shards := make([]shard, opts.shardCount)
	for i := range shards {
		shards[i].entries = make(map[string]*lockEntry)
	}
	return &keyLockImpl{
		shards: shards,
		mask:   opts.shardMask,
		opts:   opts,
		done:   make(chan struct{}),
	}
}

func (kl *keyLockImpl) getShard(key string) *shard {
	h := xxhash.Sum64String(key)
	return &kl.shards[h&kl.mask]
}

// getOrCreate 获取或创建 lockEntry，并增加引用计数。
func (kl *keyLockImpl) getOrCreate(key string) (*lockEntry, error) {
	s := kl.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if kl.closed.Load() {
		return nil, ErrClosed
	}

	e, ok := s.entries[key]
	if !ok {
		if kl.opts.maxKeys > 0 {
			// 使用 CAS 严格限制 key 数量，避免跨分片并发突破上限。
			for {
				cur := kl.keyCount.Load()
				if cur >= int64(kl.opts.maxKeys) {
					return nil, ErrMaxKeysExceeded
				}
				if kl.keyCount.CompareAndSwap(cur, cur+1) {
					break
				}
			}
		} else {
			kl.keyCount.Add(1)
		}
		e = &lockEntry{
			ch:      make(chan struct{}, 1),
			removed: make(chan struct{}),
		}
		s.entries[key] = e
		kl.created.Add(1)
	}
	e.refcnt++
	return e, nil
}

// releaseRef 减少等待者引用。启用 evictIdle 时，归零的条目从 map 删除。
func (kl *keyLockImpl) releaseRef(key string, e *lockEntry) {
	s := kl.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e.refcnt--
	kl.maybeEvictLocked(s, key, e)
}

// maybeEvictLocked 调用方必须持有 s.mu。
func (kl *keyLockImpl) maybeEvictLocked(s *shard, key string, e *lockEntry) {
	if !kl.opts.evictIdle || e.gone || e.held || e.refcnt > 0 {
		return
	}
	e.gone = true
	delete(s.entries, key)
	kl.keyCount.Add(-1)
}

// markHeld 在成功发送 token 后登记持有者。
// 条目已在发送与登记之间被移除时返回 false，同时放弃本次引用。
func (kl *keyLockImpl) markHeld(key string, e *lockEntry, holder string) bool {
	s := kl.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.gone {
		e.refcnt--
		return false
	}
	e.held = true
	e.holder = holder
	kl.held.Add(1)
	return true
}

func (kl *keyLockImpl) Acquire(ctx context.Context, key, holder string) (Handle, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if key == "" {
		return nil, ErrInvalidKey
	}
	// 快速检查：ctx 已取消时避免进入 getOrCreate 造成不必要的锁竞争。
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for {
		if kl.closed.Load() {
			return nil, ErrClosed
		}
		entry, err := kl.getOrCreate(key)
		if err != nil {
			return nil, err
		}
		select {
		case entry.ch <- struct{}{}: // 获取成功
			if kl.markHeld(key, entry, holder) {
				return &handle{kl: kl, key: key, holder: holder, entry: entry}, nil
			}
		case <-entry.removed: // 条目被移除，重新解析
			kl.releaseRef(key, entry)
		case <-ctx.Done(): // 超时或取消
			kl.releaseRef(key, entry)
			return nil, ctx.Err()
		case <-kl.done: // Locker 已关闭
			kl.releaseRef(key, entry)
			return nil, ErrClosed
		}
	}
}

func (kl *keyLockImpl) TryAcquire(key, holder string) (Handle, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if kl.closed.Load() {
		return nil, ErrClosed
	}
	entry, err := kl.getOrCreate(key)
	if err != nil {
		return nil, err
	}
	select {
	case entry.ch <- struct{}{}:
		if kl.markHeld(key, entry, holder) {
			return &handle{kl: kl, key: key, holder: holder, entry: entry}, nil
		}
		return nil, ErrLockOccupied
	default:
		kl.releaseRef(key, entry)
		return nil, ErrLockOccupied
	}
}

func (kl *keyLockImpl) Remove(key string) (RemoveResult, bool) {
	s := kl.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return RemoveResult{}, false
	}
	res := RemoveResult{Key: key, WasHeld: e.held, Holder: e.holder, Waiters: e.refcnt}
	if e.held {
		res.Waiters--
		kl.held.Add(-1)
	}
	e.gone = true
	e.held = false
	e.holder = ""
	// 封存：未持有时填满 ch，保证移除后的条目永远无法被获取。
	select {
	case e.ch <- struct{}{}:
	default:
	}
	close(e.removed)
	delete(s.entries, key)
	kl.keyCount.Add(-1)
	return res, true
}

func (kl *keyLockImpl) Holder(key string) (string, bool) {
	s := kl.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.held {
		return "", false
	}
	return e.holder, true
}

func (kl *keyLockImpl) IsLocked(key string) bool {
	s := kl.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	return ok && e.held
}

func (kl *keyLockImpl) Len() int {
	return int(max(kl.keyCount.Load(), 0))
}

func (kl *keyLockImpl) Keys() []string {
	keys := make([]string, 0, max(kl.keyCount.Load(), 0))
	for i := range kl.shards {
		s := &kl.shards[i]
		s.mu.Lock()
		for k := range s.entries {
			keys = append(keys, k)
		}
		s.mu.Unlock()
	}
	return keys
}

func (kl *keyLockImpl) Stats() Stats {
	return Stats{
		Keys:    kl.Len(),
		Held:    int(max(kl.held.Load(), 0)),
		Created: kl.created.Load(),
	}
}

func (kl *keyLockImpl) Close() error {
	if !kl.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(kl.done)
	return nil
}

// unlock 释放 h 持有的条目。
func (kl *keyLockImpl) unlock(h *handle) error {
	s := kl.getShard(h.key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e := h.entry
	e.refcnt--
	if e.gone {
		return ErrLockRevoked
	}
	var err error
	if e.holder != h.holder {
		err = ErrHolderMismatch
	}
	// token 属于 h，即使持有者记录不一致也必须归还，避免 key 永久锁死。
	e.held = false
	e.holder = ""
	kl.held.Add(-1)
	<-e.ch
	kl.maybeEvictLocked(s, h.key, e)
	return err
}

// handle 方法

func (h *handle) Unlock() error {
	if !h.done.CompareAndSwap(false, true) {
		return ErrLockNotHeld
	}
	return h.kl.unlock(h)
}

func (h *handle) Key() string {
	return h.key
}

func (h *handle) Holder() string {
	return h.holder
}

func (h *handle) Revoked() <-chan struct{} {
	return h.entry.removed
}

// 编译期接口检查。
var (
	_ Locker = (*keyLockImpl)(nil)
	_ Handle = (*handle)(nil)
)
