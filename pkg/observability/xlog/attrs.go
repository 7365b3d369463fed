package xlog

import (
	"log/slog"
	"time"

	"github.com/omeyang/xvoice/pkg/context/xctx"
)

// 标准属性 Key，保证日志字段命名一致
const (
	KeyError     = "error"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyComponent = "component"
	KeyOperation = "operation"
	KeyKey       = "key"
	KeyHolder    = "holder"
	KeyRequestID = xctx.KeyRequestID
	KeySessionID = xctx.KeySessionID
	KeyVoiceID   = xctx.KeyVoiceID
)

// Err 创建错误属性。err 为 nil 时返回 "<nil>"，避免日志中出现空字段。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "<nil>")
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性
func Duration(d time.Duration) slog.Attr {
	return slog.Duration(KeyDuration, d)
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Key 创建隔离键属性
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Holder 创建锁持有者属性
func Holder(id string) slog.Attr {
	return slog.String(KeyHolder, id)
}

// VoiceID 创建声音 ID 属性
func VoiceID(id string) slog.Attr {
	return slog.String(KeyVoiceID, id)
}

// SessionID 创建会话 ID 属性
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}
