package xgate

import (
	"context"
	"strings"
	"time"

	"github.com/omeyang/xvoice/pkg/observability/xlog"
)

// CleanupResult 描述一次会话清理。
type CleanupResult struct {
	// ScopeID 被清理的会话。
	ScopeID string `json:"session_id"`
	// Resources 会话下记录的资源数（即移除的隔离键数）。
	Resources int `json:"resources"`
	// Forced 被强制释放的活跃持有数。
	Forced int `json:"forced"`
}

// CleanupSession 删除会话下所有资源的锁条目，会话记录最后删除。
//
// 条目仍被持有时强制释放：持有的 context 以 ErrSessionClosed 取消，
// 同一隔离键随后的获取会创建全新的条目。
// 幂等：会话不存在、scopeID 为空或含 ":" 时为 no-op，返回零值结果。
//
// 设计决策: 强制释放不等待正在进行的合成退出，只通过 context 通知它停止。
// 新的获取者可能在旧工作真正停止前开始，这是恢复路径可接受的代价。
func (g *Gate) CleanupSession(ctx context.Context, scopeID string) CleanupResult {
	if scopeID == "" || strings.Contains(scopeID, keySeparator) {
		return CleanupResult{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	g.mu.Lock()
	resources, ok := g.sessions[scopeID]
	if !ok {
		g.mu.Unlock()
		return CleanupResult{}
	}
	var victims []*Hold
	for resourceID := range resources {
		key := ResolveKey(resourceID, scopeID)
		g.locks.Remove(key)
		if h, held := g.active[key]; held {
			delete(g.active, key)
			victims = append(victims, h)
		}
	}
	delete(g.sessions, scopeID)
	g.mu.Unlock()

	res := CleanupResult{ScopeID: scopeID, Resources: len(resources)}
	for _, h := range victims {
		if !h.forceEnd() {
			continue
		}
		res.Forced++
		g.completed.Add(1)
		g.forced.Add(1)
		g.metrics.RecordRelease(ctx, time.Since(h.acquiredAt), true)
		g.logger.Warn(ctx, "forced release of active voice hold",
			xlog.Key(h.key), xlog.Holder(h.requestID), xlog.SessionID(scopeID))
	}
	g.logger.Info(ctx, "session cleaned up",
		xlog.SessionID(scopeID), xlog.Count(int64(res.Resources)))
	return res
}
