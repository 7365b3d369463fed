package xgate

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/omeyang/xvoice/pkg/util/xkeylock"
)

// 持有状态
const (
	holdActive int32 = iota
	holdReleased
	holdForced
)

// Hold 是一次成功准入的独占持有。
type Hold struct {
	gate       *Gate
	handle     xkeylock.Handle
	key        string
	requestID  string
	resourceID string
	scopeID    string
	ctx        context.Context
	cancel     context.CancelCauseFunc
	acquiredAt time.Time
	waited     time.Duration
	state      atomic.Int32
}

// Release 释放持有，幂等。
//
// 正常释放返回 nil（重复调用同样返回 nil）。
// 持有已被会话清理强制释放时返回 [ErrSessionClosed]。
// 注册表持有者记录与本持有不一致时返回 [ErrInternalInconsistency]。
func (h *Hold) Release() error {
	if !h.state.CompareAndSwap(holdActive, holdReleased) {
		if h.state.Load() == holdForced {
			return ErrSessionClosed
		}
		return nil
	}
	return h.gate.release(h)
}

// forceEnd 将持有标记为强制释放并取消其 context。
// 条目已由调用方从注册表移除，这里只收尾 Handle。
func (h *Hold) forceEnd() bool {
	if !h.state.CompareAndSwap(holdActive, holdForced) {
		return false
	}
	h.cancel(ErrSessionClosed)
	_ = h.handle.Unlock()
	return true
}

// Context 返回持有期间使用的 context。
// 它继承调用方 ctx，携带 request_id/session_id/voice_id，
// 释放后取消；被会话清理强制释放时 context.Cause 为 [ErrSessionClosed]。
func (h *Hold) Context() context.Context {
	return h.ctx
}

// Key 返回隔离键。
func (h *Hold) Key() string { return h.key }

// RequestID 返回持有者请求 ID。
func (h *Hold) RequestID() string { return h.requestID }

// ResourceID 返回资源 ID。
func (h *Hold) ResourceID() string { return h.resourceID }

// ScopeID 返回会话 ID，可能为空。
func (h *Hold) ScopeID() string { return h.scopeID }

// Waited 返回获取前的等待时长。
func (h *Hold) Waited() time.Duration { return h.waited }

// AcquiredAt 返回获取时刻。
func (h *Hold) AcquiredAt() time.Time { return h.acquiredAt }

// Forced 报告持有是否被会话清理强制释放。
func (h *Hold) Forced() bool { return h.state.Load() == holdForced }
