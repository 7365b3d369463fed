// Package xmetrics 提供统一的观测接口（追踪 + 指标）。
//
// [Observer] 为一次操作开启跨度，[Span.End] 记录结果。OTel 实现同时产生：
//   - trace span（名称为 operation）
//   - xvoice.operation.total 计数（component/operation/status）
//   - xvoice.operation.duration 直方图（秒）
//
// context 中的 request_id/session_id/voice_id 自动作为 span 属性写入。
// nil Observer 通过 [Start] 退化为 [NoopObserver]。
package xmetrics
