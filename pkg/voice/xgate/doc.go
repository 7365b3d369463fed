// Package xgate 提供按声音（voice）隔离的进程内准入门控。
//
// 一个声音是有状态、不可重入的合成通道：同一时刻只允许一个请求使用。
// Gate 把每次请求映射到一个隔离键（isolation key），并通过
// [xkeylock.Locker] 为每个键提供互斥，不同键之间互不阻塞。
//
// # 隔离键
//
// 提供会话（scope）时隔离键为 "scope:resource"，否则为 "resource"。
// 不同会话对同一声音持有不同的键，彼此独立；同一会话内对同一声音串行。
//
// # 使用方式
//
//	gate, err := xgate.New(xgate.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer gate.Close()
//
//	err = gate.Do(ctx, xgate.Request{ResourceID: "narrator", ScopeID: sessionID}, func(ctx context.Context) error {
//		return engine.Generate(ctx, text)
//	})
//	if errors.Is(err, xgate.ErrAdmissionTimeout) {
//		// 声音忙，映射为可重试的 503
//	}
//
// # 状态机
//
// 每次获取尝试：REQUESTED → WAITING → {HELD → RELEASED | TIMED_OUT}。
// 一旦进入 HELD，只能以释放结束（正常释放或会话清理的强制释放），不会超时。
//
// # 会话清理
//
// [Gate.CleanupSession] 删除会话下所有隔离键的锁条目。条目仍被持有时强制释放，
// 并以 [ErrSessionClosed] 为原因取消该持有的 context，通知正在进行的合成停止。
//
// # 公平性
//
// 同一键上的多个等待者不保证按到达顺序获取。
//
// # 不一致检测
//
// 释放时如果注册表记录的持有者与释放方不一致，记录 error 日志并返回
// [ErrInternalInconsistency]；在测试二进制或 WithStrict(true) 下直接 panic。
package xgate
