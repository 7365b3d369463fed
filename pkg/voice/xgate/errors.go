package xgate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAdmissionTimeout 表示在超时时间内未能获取声音。
	// 可恢复：调用方应向上游返回"资源忙，请重试"（如 HTTP 503）。
	ErrAdmissionTimeout = errors.New("xgate: admission timeout")

	// ErrInternalInconsistency 表示释放时持有者记录与释放方不一致，
	// 说明调用方纪律存在缺陷。
	ErrInternalInconsistency = errors.New("xgate: internal inconsistency")

	// ErrSessionClosed 表示持有因会话清理被强制释放。
	// 作为持有 context 的取消原因（context.Cause）。
	ErrSessionClosed = errors.New("xgate: session closed")

	// ErrClosed 表示 Gate 已关闭。
	ErrClosed = errors.New("xgate: closed")

	// ErrInvalidResource 表示资源 ID 为空或含有键分隔符 ":"。
	ErrInvalidResource = errors.New("xgate: invalid resource id")

	// ErrInvalidScope 表示会话 ID 含有键分隔符 ":"。
	ErrInvalidScope = errors.New("xgate: invalid scope id")

	// ErrNilContext 表示传入了 nil context。
	ErrNilContext = errors.New("xgate: nil context")

	// ErrInvalidOption 表示配置选项无效。
	ErrInvalidOption = errors.New("xgate: invalid option")
)

// AdmissionTimeoutError 描述一次准入超时。
// errors.Is(err, ErrAdmissionTimeout) 对它返回 true。
type AdmissionTimeoutError struct {
	Key       string
	RequestID string
	Waited    time.Duration
	Timeout   time.Duration
}

func (e *AdmissionTimeoutError) Error() string {
	return fmt.Sprintf("xgate: admission timeout: key %q busy, request %s waited %s (timeout %s)",
		e.Key, e.RequestID, e.Waited.Round(time.Millisecond), e.Timeout)
}

// Is 使 errors.Is(err, ErrAdmissionTimeout) 成立。
func (e *AdmissionTimeoutError) Is(target error) bool {
	return target == ErrAdmissionTimeout
}
