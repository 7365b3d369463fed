// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持动态级别与文件轮转
//   - xmetrics: 统一观测接口，OpenTelemetry 追踪与指标
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 自动从 context 中提取请求字段注入日志
//   - 未配置时退化为 no-op，不影响业务路径
package observability
