package xctx

import "errors"

// 设计决策: contextKey 使用 string 而非 int+iota，包私有类型已保证不与其他包冲突，
// 字符串值在调试时可读。
type contextKey string

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingRequestID request_id 缺失
	ErrMissingRequestID = errors.New("xctx: missing request_id")

	// ErrMissingSessionID session_id 缺失
	ErrMissingSessionID = errors.New("xctx: missing session_id")

	// ErrMissingVoiceID voice_id 缺失
	ErrMissingVoiceID = errors.New("xctx: missing voice_id")
)
