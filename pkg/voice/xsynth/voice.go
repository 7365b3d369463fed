package xsynth

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// 默认声音参数
const (
	DefaultTemperature  = 0.8
	DefaultExaggeration = 1.3
	DefaultCFGWeight    = 0.5
	DefaultSpeed        = 1.0

	// DefaultSampleRate 模拟引擎的输出采样率。
	DefaultSampleRate = 24000
)

// 参数范围
const (
	minSpeed = 0.5
	maxSpeed = 2.0
	maxTemp  = 2.0
	maxExag  = 2.0
)

// Synthesizer 是合成引擎边界。
//
// 实现不需要自行串行化：同一声音的并发调用已由门控排除。
// 实现应在 ctx 结束时尽快返回，ctx 的取消原因可能是 xgate.ErrSessionClosed。
type Synthesizer interface {
	Generate(ctx context.Context, text string, params VoiceParams) (*Audio, error)
}

// VoiceParams 声音生成参数。零值字段由 [VoiceParams.Normalize] 填充默认值。
//
// VoiceParams 可比较，直接作为缓存键的一部分。
type VoiceParams struct {
	Temperature  float64 `json:"temperature,omitempty"`
	Exaggeration float64 `json:"exaggeration,omitempty"`
	CFGWeight    float64 `json:"cfg_weight,omitempty"`
	// Speed 播放速度倍率，范围 [0.5, 2.0]。
	Speed float64 `json:"speed,omitempty"`
	// Seed 随机种子。0 表示不固定，输出不可复现，也不会进入缓存。
	Seed int64 `json:"seed,omitempty"`
}

// DefaultVoiceParams 返回默认参数。
func DefaultVoiceParams() VoiceParams {
	return VoiceParams{
		Temperature:  DefaultTemperature,
		Exaggeration: DefaultExaggeration,
		CFGWeight:    DefaultCFGWeight,
		Speed:        DefaultSpeed,
	}
}

// Normalize 返回零值字段替换为默认值后的参数。
func (p VoiceParams) Normalize() VoiceParams {
	d := DefaultVoiceParams()
	if p.Temperature == 0 {
		p.Temperature = d.Temperature
	}
	if p.Exaggeration == 0 {
		p.Exaggeration = d.Exaggeration
	}
	if p.CFGWeight == 0 {
		p.CFGWeight = d.CFGWeight
	}
	if p.Speed == 0 {
		p.Speed = d.Speed
	}
	return p
}

// Validate 检查参数范围，应在 Normalize 之后调用。
func (p VoiceParams) Validate() error {
	switch {
	case !(p.Temperature > 0 && p.Temperature <= maxTemp):
		return fmt.Errorf("%w: temperature %v out of (0, %v]", ErrInvalidParams, p.Temperature, maxTemp)
	case !inRange(p.Exaggeration, 0, maxExag):
		return fmt.Errorf("%w: exaggeration %v out of [0, %v]", ErrInvalidParams, p.Exaggeration, maxExag)
	case !inRange(p.CFGWeight, 0, 1):
		return fmt.Errorf("%w: cfg_weight %v out of [0, 1]", ErrInvalidParams, p.CFGWeight)
	case !inRange(p.Speed, minSpeed, maxSpeed):
		return fmt.Errorf("%w: speed %v out of [%v, %v]", ErrInvalidParams, p.Speed, minSpeed, maxSpeed)
	}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// Audio 单声道浮点 PCM 音频，样本范围 [-1, 1]。
type Audio struct {
	Samples    []float32
	SampleRate int
	Duration   time.Duration
}

// newAudio 根据样本数计算时长。
func newAudio(samples []float32, sampleRate int) *Audio {
	var d time.Duration
	if sampleRate > 0 {
		d = time.Duration(len(samples)) * time.Second / time.Duration(sampleRate)
	}
	return &Audio{Samples: samples, SampleRate: sampleRate, Duration: d}
}

// Concat 按顺序拼接音频片段，所有片段的采样率必须一致。
// 空列表返回 nil。
func Concat(parts []*Audio) (*Audio, error) {
	if len(parts) == 0 {
		return nil, nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	rate := parts[0].SampleRate
	total := 0
	for i, p := range parts {
		if p.SampleRate != rate {
			return nil, fmt.Errorf("%w: part %d has %d Hz, want %d Hz", ErrSampleRateMismatch, i, p.SampleRate, rate)
		}
		total += len(p.Samples)
	}
	samples := make([]float32, 0, total)
	for _, p := range parts {
		samples = append(samples, p.Samples...)
	}
	return newAudio(samples, rate), nil
}

// PCM16 将样本编码为 16 位有符号小端 PCM。超出 [-1, 1] 的样本被截断。
func (a *Audio) PCM16() []byte {
	if a == nil {
		return nil
	}
	out := make([]byte, 2*len(a.Samples))
	for i, s := range a.Samples {
		v := max(-1, min(1, float64(s)))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(math.Round(v*math.MaxInt16))))
	}
	return out
}
