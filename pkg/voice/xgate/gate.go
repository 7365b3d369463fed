package xgate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/omeyang/xvoice/pkg/context/xctx"
	"github.com/omeyang/xvoice/pkg/observability/xlog"
	"github.com/omeyang/xvoice/pkg/util/xkeylock"
)

// Request 描述一次准入请求。
type Request struct {
	// RequestID 请求标识，同时作为锁的持有者 ID。为空时自动生成。
	RequestID string
	// ResourceID 资源（声音）标识，必填。
	ResourceID string
	// ScopeID 会话标识，可为空（不隔离）。
	ScopeID string
	// Timeout 等待上限，<= 0 时使用 Gate 的默认值。
	Timeout time.Duration
}

// Gate 是按隔离键互斥的准入门控，所有方法并发安全。
//
// Gate 应在进程启动时创建一次，并显式传入各请求路径。
type Gate struct {
	locks   xkeylock.Locker
	opts    options
	logger  xlog.Logger
	metrics *Metrics

	// mu 保护 sessions 与 active 的结构变更。
	// 锁顺序：mu → 注册表分片锁，注册表从不回调 Gate。
	mu       sync.Mutex
	sessions map[string]map[string]struct{}
	active   map[string]*Hold

	total     atomic.Int64
	queued    atomic.Int64
	completed atomic.Int64
	timeouts  atomic.Int64
	forced    atomic.Int64

	closed atomic.Bool
}

// New 创建 Gate。
func New(opts ...Option) (*Gate, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	locks := o.locker
	if locks == nil {
		var err error
		if locks, err = xkeylock.New(o.lockerOpts...); err != nil {
			return nil, fmt.Errorf("xgate: create lock registry: %w", err)
		}
	}

	logger := o.logger
	if logger == nil {
		logger = xlog.Discard()
	}

	g := &Gate{
		locks:    locks,
		opts:     o,
		logger:   logger.With(xlog.Component("xgate")),
		sessions: make(map[string]map[string]struct{}),
		active:   make(map[string]*Hold),
	}

	metrics, err := NewMetrics(o.meterProvider, g)
	if err != nil {
		_ = locks.Close()
		return nil, fmt.Errorf("xgate: create metrics: %w", err)
	}
	g.metrics = metrics
	return g, nil
}

// Acquire 等待并获取 req 对应隔离键的独占持有。
//
// 成功返回的 *Hold 必须调用 Release（推荐 defer），或改用 [Gate.Do]。
// 在 Timeout 内未获取到时返回 *AdmissionTimeoutError（匹配 ErrAdmissionTimeout）。
// 调用方 ctx 在等待中结束时返回包装后的 ctx.Err()，不计为超时。
// 两种失败都不持有任何东西，也不修改会话记录。
func (g *Gate) Acquire(ctx context.Context, req Request) (*Hold, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := ValidateIDs(req.ResourceID, req.ScopeID); err != nil {
		return nil, err
	}
	if g.closed.Load() {
		return nil, ErrClosed
	}

	key := ResolveKey(req.ResourceID, req.ScopeID)
	requestID := req.RequestID
	if requestID == "" {
		id, err := g.opts.newRequestID()
		if err != nil {
			return nil, fmt.Errorf("xgate: generate request id: %w", err)
		}
		requestID = id
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.opts.defaultTimeout
	}

	// 字段在等待前写入：此处失败时尚未持有任何东西。
	ctx, err := xctx.WithFields(ctx, xctx.Fields{
		RequestID: requestID,
		SessionID: req.ScopeID,
		VoiceID:   req.ResourceID,
	})
	if err != nil {
		return nil, fmt.Errorf("xgate: attach request fields: %w", err)
	}

	g.total.Add(1)
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	handle, err := g.locks.Acquire(waitCtx, key, requestID)
	cancel()
	waited := time.Since(start)

	if err != nil {
		return nil, g.acquireFailed(ctx, key, requestID, waited, timeout, err)
	}

	if waited > g.opts.queueThreshold {
		g.queued.Add(1)
		g.logger.Warn(ctx, "voice busy, request waited in queue",
			xlog.Key(key), xlog.Holder(requestID), xlog.Duration(waited))
	}

	holdCtx, cancelHold := context.WithCancelCause(ctx)
	h := &Hold{
		gate:       g,
		handle:     handle,
		key:        key,
		requestID:  requestID,
		resourceID: req.ResourceID,
		scopeID:    req.ScopeID,
		ctx:        holdCtx,
		cancel:     cancelHold,
		acquiredAt: time.Now(),
		waited:     waited,
	}

	if err := g.register(h); err != nil {
		return nil, err
	}

	g.metrics.RecordAcquire(ctx, OutcomeAcquired, waited)
	g.logger.Debug(ctx, "voice acquired", xlog.Key(key), xlog.Holder(requestID), xlog.Duration(waited))
	return h, nil
}

// register 登记持有与会话成员关系。
// 条目若在获取之后、登记之前已被会话清理移除，持有视为被强制释放。
func (g *Gate) register(h *Hold) error {
	g.mu.Lock()
	select {
	case <-h.handle.Revoked():
		g.mu.Unlock()
		h.forceEnd()
		g.completed.Add(1)
		g.forced.Add(1)
		g.metrics.RecordAcquire(h.ctx, OutcomeRevoked, h.waited)
		g.logger.Warn(h.ctx, "session closed during admission", xlog.Key(h.key), xlog.Holder(h.requestID))
		return fmt.Errorf("xgate: acquire %q: %w", h.key, ErrSessionClosed)
	default:
	}
	if h.scopeID != "" {
		resources, ok := g.sessions[h.scopeID]
		if !ok {
			resources = make(map[string]struct{})
			g.sessions[h.scopeID] = resources
		}
		resources[h.resourceID] = struct{}{}
	}
	g.active[h.key] = h
	g.mu.Unlock()
	return nil
}

func (g *Gate) acquireFailed(ctx context.Context, key, requestID string, waited, timeout time.Duration, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		g.timeouts.Add(1)
		g.metrics.RecordAcquire(ctx, OutcomeTimeout, waited)
		g.logger.Error(ctx, "voice admission timed out",
			xlog.Key(key), xlog.Holder(requestID), xlog.Duration(waited))
		return &AdmissionTimeoutError{Key: key, RequestID: requestID, Waited: waited, Timeout: timeout}
	case errors.Is(err, xkeylock.ErrClosed):
		g.metrics.RecordAcquire(ctx, OutcomeRejected, waited)
		return ErrClosed
	case ctx.Err() != nil:
		g.metrics.RecordAcquire(ctx, OutcomeCancelled, waited)
		return fmt.Errorf("xgate: acquire %q: %w", key, err)
	default:
		g.metrics.RecordAcquire(ctx, OutcomeRejected, waited)
		g.logger.Error(ctx, "voice admission failed", xlog.Key(key), xlog.Err(err))
		return fmt.Errorf("xgate: acquire %q: %w", key, err)
	}
}

// Do 获取持有后执行 fn，并在所有退出路径（包括 panic）上释放。
// fn 收到的 ctx 在会话清理强制释放时以 ErrSessionClosed 为原因取消。
func (g *Gate) Do(ctx context.Context, req Request, fn func(ctx context.Context) error) (err error) {
	h, err := g.Acquire(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := h.Release(); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()
	return fn(h.Context())
}

// IsBusy 报告资源在该会话下当前是否被持有。无副作用。
// ID 无法通过 [ValidateIDs] 时返回 false：这样的键永远不会被持有。
func (g *Gate) IsBusy(resourceID, scopeID string) bool {
	if ValidateIDs(resourceID, scopeID) != nil {
		return false
	}
	return g.locks.IsLocked(ResolveKey(resourceID, scopeID))
}

// ActiveHolder 返回当前持有者的请求 ID。无副作用。
// ID 无法通过 [ValidateIDs] 时返回 ("", false)。
func (g *Gate) ActiveHolder(resourceID, scopeID string) (string, bool) {
	if ValidateIDs(resourceID, scopeID) != nil {
		return "", false
	}
	return g.locks.Holder(ResolveKey(resourceID, scopeID))
}

// Close 拒绝新的获取并唤醒所有等待者（返回 ErrClosed）。
// 已持有的 Hold 仍可正常释放。重复调用返回 ErrClosed。
func (g *Gate) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	err := g.locks.Close()
	if errors.Is(err, xkeylock.ErrClosed) {
		err = nil
	}
	return errors.Join(err, g.metrics.Close())
}

// release 归还 h 持有的条目。调用方已通过状态 CAS 保证只执行一次。
func (g *Gate) release(h *Hold) error {
	err := h.handle.Unlock()

	g.mu.Lock()
	if g.active[h.key] == h {
		delete(g.active, h.key)
	}
	g.mu.Unlock()

	h.cancel(nil)
	g.completed.Add(1)
	held := time.Since(h.acquiredAt)
	g.metrics.RecordRelease(h.ctx, held, false)

	switch {
	case err == nil, errors.Is(err, xkeylock.ErrLockRevoked):
		// Revoked：会话清理移除了条目，但释放先一步完成，按正常释放处理。
		g.logger.Debug(h.ctx, "voice released", xlog.Key(h.key), xlog.Duration(held))
		return nil
	case errors.Is(err, xkeylock.ErrHolderMismatch):
		return g.reportInconsistency(h, err)
	default:
		g.logger.Error(h.ctx, "voice release failed", xlog.Key(h.key), xlog.Err(err))
		return fmt.Errorf("xgate: release %q: %w", h.key, err)
	}
}

// reportInconsistency 记录持有者不一致。测试二进制或严格模式下 panic。
func (g *Gate) reportInconsistency(h *Hold, cause error) error {
	err := fmt.Errorf("%w: release of %q by %s: %w", ErrInternalInconsistency, h.key, h.requestID, cause)
	g.logger.Error(h.ctx, "holder record mismatch on release",
		xlog.Key(h.key), xlog.Holder(h.requestID), xlog.Err(cause))
	if g.opts.strict || testing.Testing() {
		panic(err)
	}
	return err
}
