// Package voice 提供语音合成准入相关的子包。
//
// 子包列表：
//   - xgate: 按 (会话, 声音) 隔离键互斥的准入门控，含会话清理与统计
//   - xsynth: 在门控保护下调用合成引擎，含长文本切块、缓存、重试与熔断
//
// 设计原则：
//   - 同一声音在同一会话内同时只有一个合成在进行
//   - 门控由调用方显式创建并传递，不使用全局单例
package voice
