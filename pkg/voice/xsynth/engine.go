package xsynth

import (
	"context"
	"math"
	"strconv"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/omeyang/xvoice/pkg/context/xctx"
)

// 模拟引擎默认值
const (
	DefaultEngineDelay = 200 * time.Millisecond

	// simCharsPerSecond 估算语速：每秒朗读的字符数。
	simCharsPerSecond = 15.0
	simMinDuration    = 100 * time.Millisecond
)

// SimOption 配置 SimEngine。
type SimOption func(*SimEngine)

// WithDelay 设置每次 Generate 的模拟推理耗时，负值按 0 处理。
func WithDelay(d time.Duration) SimOption {
	return func(e *SimEngine) {
		e.delay = max(d, 0)
	}
}

// WithSampleRate 设置输出采样率，<= 0 时忽略。
func WithSampleRate(rate int) SimOption {
	return func(e *SimEngine) {
		if rate > 0 {
			e.sampleRate = rate
		}
	}
}

// SimEngine 模拟合成引擎。
//
// 每次 Generate 先等待固定延迟（可被 ctx 打断），再输出正弦波：
// 时长按文本长度与 Speed 估算，频率由 (voice, text, seed) 决定，
// 相同输入总是得到相同样本。声音 ID 从 ctx 中读取（xctx.VoiceID）。
type SimEngine struct {
	delay      time.Duration
	sampleRate int

	calls    atomic.Int64
	inflight atomic.Int64
	peak     atomic.Int64
}

// NewSimEngine 创建模拟引擎。
func NewSimEngine(opts ...SimOption) *SimEngine {
	e := &SimEngine{
		delay:      DefaultEngineDelay,
		sampleRate: DefaultSampleRate,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Generate 实现 Synthesizer。
func (e *SimEngine) Generate(ctx context.Context, text string, params VoiceParams) (*Audio, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if text == "" {
		return nil, ErrEmptyText
	}
	e.calls.Add(1)
	cur := e.inflight.Add(1)
	defer e.inflight.Add(-1)
	for {
		p := e.peak.Load()
		if cur <= p || e.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	if e.delay > 0 {
		timer := time.NewTimer(e.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, context.Cause(ctx)
		case <-timer.C:
		}
	}

	params = params.Normalize()
	seconds := float64(utf8.RuneCountInString(text)) / simCharsPerSecond / params.Speed
	duration := max(time.Duration(seconds*float64(time.Second)), simMinDuration)
	n := int(duration.Seconds() * float64(e.sampleRate))

	seed := xxhash.Sum64String(xctx.VoiceID(ctx) + "\x00" + text + "\x00" + strconv.FormatInt(params.Seed, 10))
	freq := 110 + float64(seed%440)
	amp := 0.2 + 0.1*math.Min(params.Exaggeration, maxExag)

	samples := make([]float32, n)
	step := 2 * math.Pi * freq / float64(e.sampleRate)
	for i := range samples {
		samples[i] = float32(amp * math.Sin(step*float64(i)))
	}
	return newAudio(samples, e.sampleRate), nil
}

// Calls 返回 Generate 被调用的次数。
func (e *SimEngine) Calls() int64 { return e.calls.Load() }

// PeakConcurrency 返回观测到的最大并发 Generate 数。
func (e *SimEngine) PeakConcurrency() int64 { return e.peak.Load() }

var _ Synthesizer = (*SimEngine)(nil)
