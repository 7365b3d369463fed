// Package xctx 提供轻量级的请求上下文管理。
//
// 为语音合成请求链路提供 context 存取能力，并为日志系统提供属性提取功能。
//
// # 核心字段
//
//   - request_id : 请求标识（同时作为锁持有者 ID）
//   - session_id : 会话标识（隔离作用域，可为空）
//   - voice_id   : 声音资源标识
//
// # 命名约定
//
//	WithXxx(ctx, value)    - 注入：将 value 写入 context
//	Xxx(ctx)               - 读取：从 context 读取值，缺失时返回零值
//	RequireXxx(ctx)        - 强制读取：值必须存在，缺失时返回错误
//	EnsureXxx(ctx)         - 确保存在：若已存在则返回，否则自动生成
//
// # 校验策略
//
// xctx 是纯存取层，不校验值的格式。WithXxx 仅在 ctx 为 nil 时返回 [ErrNilContext]。
//
// # 日志集成
//
// [AppendAttrs] 将非空字段追加为 slog.Attr，xlog 的 EnrichHandler 据此自动丰富日志。
package xctx
