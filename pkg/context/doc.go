// Package context 提供请求上下文相关的子包。
//
// 子包列表：
//   - xctx: 在 context 中注入/提取 request_id、session_id、voice_id，并转换为日志属性
//
// 设计原则：
//   - 请求字段只通过 context.Context 传递，不使用全局变量
//   - nil context 返回错误而非 panic
package context
