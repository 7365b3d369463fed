package xctx

import (
	"context"

	"github.com/google/uuid"
)

// 日志属性 Key 常量，遵循下划线分隔的命名约定
const (
	KeyRequestID = "request_id"
	KeySessionID = "session_id"
	KeyVoiceID   = "voice_id"

	// fieldCount 字段数量（用于 slog 属性预分配）
	fieldCount = 3
)

const (
	keyRequestID = contextKey("xctx:request_id")
	keySessionID = contextKey("xctx:session_id")
	keyVoiceID   = contextKey("xctx:voice_id")
)

func withValue(ctx context.Context, key contextKey, value string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, key, value), nil
}

func value(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func requireValue(ctx context.Context, key contextKey, missing error) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := value(ctx, key)
	if v == "" {
		return "", missing
	}
	return v, nil
}

// =============================================================================
// RequestID 操作
// =============================================================================

// WithRequestID 将请求 ID 注入 context。
//
// 设计决策: 返回 error 而非 panic，保持所有 WithXxx 签名一致，便于中间件链统一处理。
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	return withValue(ctx, keyRequestID, requestID)
}

// RequestID 从 context 提取请求 ID，不存在返回空字符串
func RequestID(ctx context.Context) string {
	return value(ctx, keyRequestID)
}

// RequireRequestID 从 context 获取请求 ID，不存在返回 ErrMissingRequestID
func RequireRequestID(ctx context.Context) (string, error) {
	return requireValue(ctx, keyRequestID, ErrMissingRequestID)
}

// GenerateRequestID 生成新的请求 ID（UUID v4 字符串）。
func GenerateRequestID() string {
	return uuid.NewString()
}

// EnsureRequestID 确保 context 中有请求 ID，已存在时原样返回。
func EnsureRequestID(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if RequestID(ctx) != "" {
		return ctx, nil
	}
	return WithRequestID(ctx, GenerateRequestID())
}

// =============================================================================
// SessionID 操作
// =============================================================================

// WithSessionID 将会话 ID 注入 context
func WithSessionID(ctx context.Context, sessionID string) (context.Context, error) {
	return withValue(ctx, keySessionID, sessionID)
}

// SessionID 从 context 提取会话 ID，不存在返回空字符串
func SessionID(ctx context.Context) string {
	return value(ctx, keySessionID)
}

// RequireSessionID 从 context 获取会话 ID，不存在返回 ErrMissingSessionID
func RequireSessionID(ctx context.Context) (string, error) {
	return requireValue(ctx, keySessionID, ErrMissingSessionID)
}

// =============================================================================
// VoiceID 操作
// =============================================================================

// WithVoiceID 将声音 ID 注入 context
func WithVoiceID(ctx context.Context, voiceID string) (context.Context, error) {
	return withValue(ctx, keyVoiceID, voiceID)
}

// VoiceID 从 context 提取声音 ID，不存在返回空字符串
func VoiceID(ctx context.Context) string {
	return value(ctx, keyVoiceID)
}

// RequireVoiceID 从 context 获取声音 ID，不存在返回 ErrMissingVoiceID
func RequireVoiceID(ctx context.Context) (string, error) {
	return requireValue(ctx, keyVoiceID, ErrMissingVoiceID)
}

// =============================================================================
// 批量操作
// =============================================================================

// Fields 是请求上下文字段的批量视图。
type Fields struct {
	RequestID string
	SessionID string
	VoiceID   string
}

// GetFields 批量读取所有字段。
func GetFields(ctx context.Context) Fields {
	return Fields{
		RequestID: RequestID(ctx),
		SessionID: SessionID(ctx),
		VoiceID:   VoiceID(ctx),
	}
}

// WithFields 批量注入字段。
//
// 设计决策: 仅注入非空字段，父 context 中已存在的字段会被保留。
// 允许入口层设置基础值，后续层仅补充缺失字段。
func WithFields(ctx context.Context, f Fields) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	setters := []struct {
		key   contextKey
		value string
	}{
		{keyRequestID, f.RequestID},
		{keySessionID, f.SessionID},
		{keyVoiceID, f.VoiceID},
	}
	for _, s := range setters {
		if s.value == "" {
			continue
		}
		ctx = context.WithValue(ctx, s.key, s.value)
	}
	return ctx, nil
}
