package xsynth

import "errors"

var (
	// ErrEmptyText 表示待合成文本为空（或只含空白）。
	ErrEmptyText = errors.New("xsynth: empty text")

	// ErrInvalidVoice 表示声音 ID 为空。
	ErrInvalidVoice = errors.New("xsynth: invalid voice id")

	// ErrInvalidParams 表示声音参数超出允许范围。
	ErrInvalidParams = errors.New("xsynth: invalid voice params")

	// ErrEngineUnavailable 表示引擎熔断器处于打开状态，请求被快速拒绝。
	ErrEngineUnavailable = errors.New("xsynth: engine unavailable")

	// ErrSampleRateMismatch 表示拼接的音频片段采样率不一致。
	ErrSampleRateMismatch = errors.New("xsynth: sample rate mismatch")

	// ErrNilGate 表示未提供门控。
	ErrNilGate = errors.New("xsynth: nil gate")

	// ErrNilEngine 表示未提供合成引擎。
	ErrNilEngine = errors.New("xsynth: nil engine")

	// ErrNilContext 表示传入了 nil context。
	ErrNilContext = errors.New("xsynth: nil context")

	// ErrInvalidOption 表示配置选项无效。
	ErrInvalidOption = errors.New("xsynth: invalid option")
)
