// Package xsynth 提供受声音准入门控保护的语音合成服务。
//
// 合成引擎（[Synthesizer]）是外部模型边界：同一个声音（或同一会话下的同一个声音）
// 在任意时刻只允许一个合成在进行，串行化由 xgate 负责。
//
// [Service] 在引擎外层组合了以下能力：
//   - 长文本按句子边界切块（[ChunkText]），在一次持有内顺序合成后拼接
//   - gobreaker 熔断：引擎连续失败时快速失败，不再占用声音
//   - retry-go 重试：只重试准入超时（声音忙），从不重试引擎错误
//   - golang-lru 缓存：指定 Seed 的确定性请求命中缓存时完全跳过门控
//   - xmetrics 观测：每次合成一个跨度
//
// [SimEngine] 是模拟引擎，固定延迟并输出确定性的正弦波，用于演示与测试。
//
// 基本用法：
//
//	gate, _ := xgate.New()
//	svc, _ := xsynth.NewService(gate, xsynth.NewSimEngine())
//	res, err := svc.Synthesize(ctx, xsynth.Request{VoiceID: "narrator", Text: "Hello."})
//	if errors.Is(err, xgate.ErrAdmissionTimeout) {
//	    // 声音忙，返回 503
//	}
package xsynth
