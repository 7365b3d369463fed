package xgate

// Stats 是 Gate 的只读快照。
//
// 计数器在进程生命周期内单调递增；Active*/TotalLocks 为瞬时值。
type Stats struct {
	// TotalRequests 进入等待的请求总数（参数校验失败的不计）。
	TotalRequests int64 `json:"total_requests"`
	// QueuedRequests 等待超过排队阈值的请求数。
	QueuedRequests int64 `json:"queued_requests"`
	// CompletedRequests 已释放的持有数（含强制释放）。
	CompletedRequests int64 `json:"completed_requests"`
	// TimeoutRequests 准入超时的请求数。
	TimeoutRequests int64 `json:"timeout_requests"`
	// ActiveLocks 当前被持有的隔离键数。
	ActiveLocks int `json:"active_locks"`
	// TotalLocks 当前存活的锁条目数。
	TotalLocks int `json:"total_locks"`
	// LocksCreated 进程生命周期内创建过的锁条目总数。
	LocksCreated int64 `json:"locks_created"`
	// ActiveSessions 当前有记录的会话数。
	ActiveSessions int `json:"active_sessions"`
	// ForcedReleases 会话清理强制释放的持有数。
	ForcedReleases int64 `json:"forced_releases"`
}

// Stats 返回当前快照，不修改任何状态。
func (g *Gate) Stats() Stats {
	ls := g.locks.Stats()
	g.mu.Lock()
	sessions := len(g.sessions)
	g.mu.Unlock()

	return Stats{
		TotalRequests:     g.total.Load(),
		QueuedRequests:    g.queued.Load(),
		CompletedRequests: g.completed.Load(),
		TimeoutRequests:   g.timeouts.Load(),
		ActiveLocks:       ls.Held,
		TotalLocks:        ls.Keys,
		LocksCreated:      ls.Created,
		ActiveSessions:    sessions,
		ForcedReleases:    g.forced.Load(),
	}
}
