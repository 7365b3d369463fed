package xctx

import (
	"context"
	"log/slog"
)

// AppendAttrs 将 context 中的请求字段追加到现有切片。
// 零分配热路径优化：传入预分配的切片，只追加非空字段。
func AppendAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := RequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyRequestID, v))
	}
	if v := SessionID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeySessionID, v))
	}
	if v := VoiceID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyVoiceID, v))
	}
	return attrs
}

// Attrs 从 context 提取请求字段，转换为 slog.Attr 切片
//
// 只返回非空字段，如果都为空则返回 nil。
// 注意：每次调用会分配新切片。热路径建议使用 AppendAttrs。
func Attrs(ctx context.Context) []slog.Attr {
	attrs := AppendAttrs(make([]slog.Attr, 0, fieldCount), ctx)
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
