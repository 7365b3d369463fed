// Package xlog 提供基于 log/slog 的结构化日志。
//
// # 设计理念
//
//   - 强制 context 传递：所有日志方法第一个参数为 context.Context
//   - 类型安全：方法签名只接受 slog.Attr
//   - 动态级别：[Leveler] 支持运行时调整（配置热加载）
//   - 自动丰富：[EnrichHandler] 从 context 提取 request_id/session_id/voice_id
//   - 生命周期：Build() 返回 cleanup 函数，用于关闭轮转文件
//
// # 快速开始
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation("/var/log/xvoice/app.log").
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
//	logger.Info(ctx, "voice acquired", xlog.Component("xgate"), xlog.Duration(wait))
//
// 库代码接受 nil Logger 时应退化为 [Discard]，而不是使用全局 logger。
package xlog
