package xgate_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xvoice/pkg/observability/xlog"
	"github.com/omeyang/xvoice/pkg/voice/xgate"
)

func TestCleanupSession_ForcesActiveHold(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := xlog.New().SetOutput(&buf).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })

	g := newGate(t, xgate.WithLogger(logger))
	ctx := context.Background()

	h := acquire(t, g, xgate.Request{RequestID: "req-a", ResourceID: "v1", ScopeID: "s1"})
	created := g.Stats().LocksCreated

	res := g.CleanupSession(ctx, "s1")
	assert.Equal(t, xgate.CleanupResult{ScopeID: "s1", Resources: 1, Forced: 1}, res)

	// 持有者通过 context 得知会话结束。
	assert.ErrorIs(t, h.Context().Err(), context.Canceled)
	assert.ErrorIs(t, context.Cause(h.Context()), xgate.ErrSessionClosed)
	assert.True(t, h.Forced())
	assert.ErrorIs(t, h.Release(), xgate.ErrSessionClosed)
	assert.ErrorIs(t, h.Release(), xgate.ErrSessionClosed)

	assert.False(t, g.IsBusy("v1", "s1"))
	_, ok := g.ActiveHolder("v1", "s1")
	assert.False(t, ok)

	st := g.Stats()
	assert.Equal(t, int64(1), st.ForcedReleases)
	assert.Equal(t, int64(1), st.CompletedRequests)
	assert.Equal(t, 0, st.ActiveSessions)
	assert.Equal(t, 0, st.TotalLocks)
	assert.Equal(t, 0, st.ActiveLocks)
	assert.Contains(t, buf.String(), "forced release of active voice hold")

	// 同一隔离键的新获取立即成功，并创建全新条目。
	h2 := acquire(t, g, xgate.Request{ResourceID: "v1", ScopeID: "s1", Timeout: 50 * time.Millisecond})
	assert.Less(t, h2.Waited(), 50*time.Millisecond)
	assert.Equal(t, created+1, g.Stats().LocksCreated)
	require.NoError(t, h2.Release())
}

func TestCleanupSession_Idempotent(t *testing.T) {
	g := newGate(t)
	ctx := context.Background()

	h := acquire(t, g, xgate.Request{ResourceID: "v1", ScopeID: "s1"})
	first := g.CleanupSession(ctx, "s1")
	assert.Equal(t, 1, first.Forced)
	before := g.Stats()

	second := g.CleanupSession(ctx, "s1")
	assert.Equal(t, xgate.CleanupResult{}, second)
	assert.Equal(t, before, g.Stats())
	assert.ErrorIs(t, h.Release(), xgate.ErrSessionClosed)
}

func TestCleanupSession_NoOps(t *testing.T) {
	g := newGate(t)
	ctx := context.Background()

	h := acquire(t, g, xgate.Request{ResourceID: "v1"})
	defer func() { require.NoError(t, h.Release()) }()

	assert.Equal(t, xgate.CleanupResult{}, g.CleanupSession(ctx, ""))
	assert.Equal(t, xgate.CleanupResult{}, g.CleanupSession(ctx, "unknown"))
	//nolint:staticcheck // nil ctx 退化为 Background
	assert.Equal(t, xgate.CleanupResult{}, g.CleanupSession(nil, "unknown"))

	// 无会话的持有不受影响。
	assert.True(t, g.IsBusy("v1", ""))
	assert.Equal(t, int64(0), g.Stats().ForcedReleases)
}

func TestCleanupSession_LeavesUnscopedHoldOnSameResource(t *testing.T) {
	g := newGate(t)
	ctx := context.Background()

	unscoped := acquire(t, g, xgate.Request{RequestID: "plain", ResourceID: "v1"})
	scoped := acquire(t, g, xgate.Request{RequestID: "in-s1", ResourceID: "v1", ScopeID: "s1"})

	res := g.CleanupSession(ctx, "s1")
	assert.Equal(t, 1, res.Resources)
	assert.Equal(t, 1, res.Forced)
	assert.True(t, scoped.Forced())

	assert.False(t, unscoped.Forced())
	assert.NoError(t, unscoped.Context().Err())
	assert.True(t, g.IsBusy("v1", ""))
	holder, ok := g.ActiveHolder("v1", "")
	assert.True(t, ok)
	assert.Equal(t, "plain", holder)
	assert.NoError(t, unscoped.Release())

	// 含分隔符的会话 ID 永远不会被登记，清理它是 no-op。
	assert.Equal(t, xgate.CleanupResult{}, g.CleanupSession(ctx, "s1:v1"))
}

func TestCleanupSession_ReleasedResources(t *testing.T) {
	g := newGate(t)

	for _, voice := range []string{"v1", "v2"} {
		h := acquire(t, g, xgate.Request{ResourceID: voice, ScopeID: "s1"})
		require.NoError(t, h.Release())
	}
	other := acquire(t, g, xgate.Request{ResourceID: "v1", ScopeID: "s2"})
	defer func() { require.NoError(t, other.Release()) }()

	st := g.Stats()
	assert.Equal(t, 3, st.TotalLocks)
	assert.Equal(t, 2, st.ActiveSessions)

	res := g.CleanupSession(context.Background(), "s1")
	assert.Equal(t, xgate.CleanupResult{ScopeID: "s1", Resources: 2, Forced: 0}, res)

	st = g.Stats()
	assert.Equal(t, 1, st.TotalLocks)
	assert.Equal(t, 1, st.ActiveSessions)
	assert.Equal(t, int64(0), st.ForcedReleases)
	assert.True(t, g.IsBusy("v1", "s2"))
}

func TestCleanupSession_WakesWaiters(t *testing.T) {
	g := newGate(t)

	h := acquire(t, g, xgate.Request{RequestID: "A", ResourceID: "v1", ScopeID: "s1"})

	type result struct {
		hold *xgate.Hold
		err  error
	}
	done := make(chan result, 1)
	go func() {
		hold, err := g.Acquire(context.Background(), xgate.Request{
			RequestID: "B", ResourceID: "v1", ScopeID: "s1", Timeout: 5 * time.Second,
		})
		done <- result{hold, err}
	}()
	time.Sleep(30 * time.Millisecond)

	g.CleanupSession(context.Background(), "s1")

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Less(t, r.hold.Waited(), 5*time.Second)
		holder, ok := g.ActiveHolder("v1", "s1")
		assert.True(t, ok)
		assert.Equal(t, "B", holder)
		assert.Equal(t, int64(2), g.Stats().LocksCreated)
		require.NoError(t, r.hold.Release())
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not admitted after session cleanup")
	}
	assert.ErrorIs(t, h.Release(), xgate.ErrSessionClosed)
}

func TestCleanupSession_CancelsDo(t *testing.T) {
	g := newGate(t)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- g.Do(context.Background(), xgate.Request{ResourceID: "v1", ScopeID: "s1"},
			func(ctx context.Context) error {
				close(started)
				<-ctx.Done()
				return context.Cause(ctx)
			})
	}()
	<-started

	res := g.CleanupSession(context.Background(), "s1")
	assert.Equal(t, 1, res.Forced)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, xgate.ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("Do did not observe session cleanup")
	}
	assert.Equal(t, int64(1), g.Stats().CompletedRequests)
}
