package xlog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/omeyang/xvoice/pkg/context/xctx"
)

// ErrNilHandler 当 NewEnrichHandler 的 base handler 为 nil 时返回
var ErrNilHandler = errors.New("xlog: base handler is nil")

// EnrichHandler 自动从 context 提取请求字段并注入日志
//
// 装饰模式实现，包装底层 slog.Handler，在 Handle() 时自动添加
// request_id、session_id、voice_id。context 中缺少字段不影响日志记录。
type EnrichHandler struct {
	base slog.Handler
}

// NewEnrichHandler 创建 EnrichHandler
func NewEnrichHandler(base slog.Handler) (*EnrichHandler, error) {
	if base == nil {
		return nil, ErrNilHandler
	}
	return &EnrichHandler{base: base}, nil
}

// Enabled 委托给底层 handler
func (h *EnrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// maxEnrichAttrs 最大注入属性数量
const maxEnrichAttrs = 3

// Handle 在调用底层 handler 前，从 context 提取请求字段。
//
// 根据 slog 契约，必须 Clone record 后再修改，避免影响其他 handler。
func (h *EnrichHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf [maxEnrichAttrs]slog.Attr
	attrs := xctx.AppendAttrs(buf[:0], ctx)
	if len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.base.Handle(ctx, r)
}

// WithAttrs 返回带额外属性的新 handler
func (h *EnrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EnrichHandler{base: h.base.WithAttrs(attrs)}
}

// WithGroup 返回带分组的新 handler
func (h *EnrichHandler) WithGroup(name string) slog.Handler {
	return &EnrichHandler{base: h.base.WithGroup(name)}
}

var _ slog.Handler = (*EnrichHandler)(nil)
