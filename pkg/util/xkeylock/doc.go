// Package xkeylock 提供基于 key 的进程内互斥锁注册表。
//
// 每个 key 对应一个锁条目（lockEntry），首次引用时惰性创建；同一 key 在条目
// 存活期间始终映射到同一个条目实例。条目记录当前持有者 ID，可用于非阻塞查询。
//
// # 特性
//
//   - Context 支持：Acquire 支持超时和取消（ctx 为 nil 时返回 [ErrNilContext]）
//   - TryAcquire：非阻塞获取，锁被占用时返回 [ErrLockOccupied]
//   - 持有者记录：[Locker.Holder] / [Locker.IsLocked] 为无副作用的瞬时查询
//   - 强制移除：[Locker.Remove] 删除条目并强制释放其持有者（恢复路径）
//   - 分片 map：默认 32 分片，分片锁保护 map 结构变更，与 per-key 锁相互独立
//   - 内存控制：WithMaxKeys(n) 限制条目数，WithEvictIdle 回收无持有者且无等待者的条目
//   - 关闭语义：Close() 拒绝新请求并唤醒所有等待者，已持有锁不受影响
//
// # 移除与等待者
//
// Remove 会封存条目（其 channel 永久保持满状态）并关闭条目的 removed 通道。
// 阻塞在旧条目上的等待者被唤醒后重新经由注册表解析 key，因此不会有等待者
// 获取到已移除的条目。旧 Handle 的 Unlock 返回 [ErrLockRevoked]。
//
// # 公平性
//
// 不保证等待者按到达顺序获取锁。
package xkeylock
