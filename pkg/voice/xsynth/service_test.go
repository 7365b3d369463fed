package xsynth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/xvoice/pkg/context/xctx"
	"github.com/omeyang/xvoice/pkg/observability/xmetrics"
	"github.com/omeyang/xvoice/pkg/voice/xgate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestGate(t *testing.T, opts ...xgate.Option) *xgate.Gate {
	t.Helper()
	g, err := xgate.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func newTestService(t *testing.T, gate *xgate.Gate, engine Synthesizer, opts ...Option) *Service {
	t.Helper()
	s, err := NewService(gate, engine, opts...)
	require.NoError(t, err)
	return s
}

func tone(n int) *Audio {
	return newAudio(make([]float32, n), DefaultSampleRate)
}

func TestNewService_Validation(t *testing.T) {
	g := newTestGate(t)

	_, err := NewService(nil, NewSimEngine())
	assert.ErrorIs(t, err, ErrNilGate)
	_, err = NewService(g, nil)
	assert.ErrorIs(t, err, ErrNilEngine)

	for name, opt := range map[string]Option{
		"chunk size":      WithChunkSize(0),
		"cache size":      WithCacheSize(-1),
		"retry delay":     WithRetry(1, -time.Second),
		"breaker fails":   WithBreaker("b", 0, time.Second),
		"breaker timeout": WithBreaker("b", 1, 0),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewService(g, NewSimEngine(), opt)
			assert.ErrorIs(t, err, ErrInvalidOption)
		})
	}
}

func TestSynthesize_InvalidRequest(t *testing.T) {
	s := newTestService(t, newTestGate(t), NewSimEngine(WithDelay(0)))

	//nolint:staticcheck // 测试 nil ctx 行为
	_, err := s.Synthesize(nil, Request{VoiceID: "v1", Text: "hi"})
	assert.ErrorIs(t, err, ErrNilContext)

	ctx := context.Background()
	_, err = s.Synthesize(ctx, Request{Text: "hi"})
	assert.ErrorIs(t, err, ErrInvalidVoice)

	_, err = s.Synthesize(ctx, Request{VoiceID: "s1:v1", Text: "hi"})
	assert.ErrorIs(t, err, xgate.ErrInvalidResource)

	_, err = s.Synthesize(ctx, Request{VoiceID: "v1", SessionID: "a:b", Text: "hi"})
	assert.ErrorIs(t, err, xgate.ErrInvalidScope)

	_, err = s.Synthesize(ctx, Request{VoiceID: "v1", Text: "  \n\t"})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = s.Synthesize(ctx, Request{VoiceID: "v1", Text: "hi", Params: VoiceParams{Speed: 3}})
	assert.ErrorIs(t, err, ErrInvalidParams)

	assert.Equal(t, int64(0), s.Gate().Stats().TotalRequests)
}

func TestSynthesize_ChunksUnderOneHold(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := NewMockSynthesizer(ctrl)
	g := newTestGate(t)
	s := newTestService(t, g, engine, WithChunkSize(10))

	params := DefaultVoiceParams()
	check := func(ctx context.Context, _ string, _ VoiceParams) {
		assert.Equal(t, "narrator", xctx.VoiceID(ctx))
		assert.Equal(t, "s1", xctx.SessionID(ctx))
		assert.True(t, g.IsBusy("narrator", "s1"))
	}
	gomock.InOrder(
		engine.EXPECT().Generate(gomock.Any(), "One.", params).
			DoAndReturn(func(ctx context.Context, text string, p VoiceParams) (*Audio, error) {
				check(ctx, text, p)
				return tone(100), nil
			}),
		engine.EXPECT().Generate(gomock.Any(), "Two words.", params).
			DoAndReturn(func(ctx context.Context, text string, p VoiceParams) (*Audio, error) {
				check(ctx, text, p)
				return tone(50), nil
			}),
	)

	res, err := s.Synthesize(context.Background(), Request{
		RequestID: "req-1",
		VoiceID:   "narrator",
		SessionID: "s1",
		Text:      "One. Two words.",
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Cached)
	assert.Len(t, res.Audio.Samples, 150)
	assert.Equal(t, DefaultSampleRate, res.Audio.SampleRate)

	assert.False(t, g.IsBusy("narrator", "s1"))
	st := g.Stats()
	assert.Equal(t, int64(1), st.TotalRequests)
	assert.Equal(t, int64(1), st.CompletedRequests)
}

func TestSynthesize_SameVoiceSerialized(t *testing.T) {
	engine := NewSimEngine(WithDelay(20 * time.Millisecond))
	s := newTestService(t, newTestGate(t), engine)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Synthesize(context.Background(), Request{VoiceID: "v1", Text: "Hello there."})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(4), engine.Calls())
	assert.Equal(t, int64(1), engine.PeakConcurrency())
}

func TestSynthesize_CacheSkipsGate(t *testing.T) {
	engine := NewSimEngine(WithDelay(0))
	g := newTestGate(t)
	s := newTestService(t, g, engine)
	ctx := context.Background()

	req := Request{VoiceID: "v1", Text: "Cached line.", Params: VoiceParams{Seed: 42}}
	first, err := s.Synthesize(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	// 声音被占用时，缓存命中仍立即返回。
	h, err := g.Acquire(ctx, xgate.Request{ResourceID: "v1"})
	require.NoError(t, err)
	defer func() { require.NoError(t, h.Release()) }()

	req.Timeout = 10 * time.Millisecond
	second, err := s.Synthesize(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Same(t, first.Audio, second.Audio)
	assert.Equal(t, 0, second.Attempts)
	assert.Equal(t, int64(1), engine.Calls())

	st := s.CacheStats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, 1, st.Len)
}

func TestSynthesize_UnseededNotCached(t *testing.T) {
	engine := NewSimEngine(WithDelay(0))
	s := newTestService(t, newTestGate(t), engine)

	for range 2 {
		res, err := s.Synthesize(context.Background(), Request{VoiceID: "v1", Text: "Fresh."})
		require.NoError(t, err)
		assert.False(t, res.Cached)
	}
	assert.Equal(t, int64(2), engine.Calls())
	assert.Equal(t, CacheStats{}, s.CacheStats())
}

func TestSynthesize_CacheDisabled(t *testing.T) {
	engine := NewSimEngine(WithDelay(0))
	s := newTestService(t, newTestGate(t), engine, WithCacheSize(0))

	req := Request{VoiceID: "v1", Text: "Seeded.", Params: VoiceParams{Seed: 7}}
	for range 2 {
		_, err := s.Synthesize(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), engine.Calls())
}

func TestSynthesize_RetriesAdmissionTimeout(t *testing.T) {
	g := newTestGate(t)
	s := newTestService(t, g, NewSimEngine(WithDelay(0)), WithRetry(10, 10*time.Millisecond))
	ctx := context.Background()

	h, err := g.Acquire(ctx, xgate.Request{ResourceID: "v1"})
	require.NoError(t, err)
	time.AfterFunc(80*time.Millisecond, func() { _ = h.Release() })

	res, err := s.Synthesize(ctx, Request{VoiceID: "v1", Text: "Eventually.", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.Greater(t, res.Attempts, 1)
	assert.Equal(t, int64(res.Attempts-1), g.Stats().TimeoutRequests)
}

func TestSynthesize_RetryExhausted(t *testing.T) {
	g := newTestGate(t)
	s := newTestService(t, g, NewSimEngine(WithDelay(0)), WithRetry(2, 5*time.Millisecond))
	ctx := context.Background()

	h, err := g.Acquire(ctx, xgate.Request{ResourceID: "v1"})
	require.NoError(t, err)
	defer func() { require.NoError(t, h.Release()) }()

	_, err = s.Synthesize(ctx, Request{VoiceID: "v1", Text: "Never.", Timeout: 10 * time.Millisecond})
	assert.ErrorIs(t, err, xgate.ErrAdmissionTimeout)
	assert.Equal(t, int64(3), g.Stats().TimeoutRequests)
}

func TestSynthesize_EngineErrorNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := NewMockSynthesizer(ctrl)
	g := newTestGate(t)
	s := newTestService(t, g, engine, WithRetry(3, time.Millisecond))

	boom := errors.New("cuda out of memory")
	engine.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom).Times(1)

	_, err := s.Synthesize(context.Background(), Request{VoiceID: "v1", Text: "Fail."})
	assert.ErrorIs(t, err, boom)
	assert.False(t, g.IsBusy("v1", ""))
	assert.Equal(t, int64(1), g.Stats().TotalRequests)
}

func TestSynthesize_NilAudioIsError(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := NewMockSynthesizer(ctrl)
	s := newTestService(t, newTestGate(t), engine)

	engine.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	_, err := s.Synthesize(context.Background(), Request{VoiceID: "v1", Text: "Empty."})
	assert.ErrorContains(t, err, "engine returned no audio")
}

func TestSynthesize_BreakerOpensAndSkipsGate(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := NewMockSynthesizer(ctrl)
	g := newTestGate(t)
	s := newTestService(t, g, engine, WithBreaker("test-engine", 2, time.Minute))

	engine.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("model crashed")).Times(2)

	ctx := context.Background()
	for range 2 {
		_, err := s.Synthesize(ctx, Request{VoiceID: "v1", Text: "Crash."})
		require.Error(t, err)
	}
	assert.Equal(t, "open", s.BreakerState())

	_, err := s.Synthesize(ctx, Request{VoiceID: "v1", Text: "Crash."})
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.Equal(t, int64(2), g.Stats().TotalRequests)
}

func TestSynthesize_SessionCleanupInterrupts(t *testing.T) {
	g := newTestGate(t)
	engine := NewSimEngine(WithDelay(5 * time.Second))
	s := newTestService(t, g, engine, WithBreaker("b", 1, time.Minute))

	done := make(chan error, 1)
	go func() {
		_, err := s.Synthesize(context.Background(), Request{VoiceID: "v1", SessionID: "s1", Text: "Long story."})
		done <- err
	}()
	require.Eventually(t, func() bool { return g.IsBusy("v1", "s1") }, time.Second, 5*time.Millisecond)

	res := g.CleanupSession(context.Background(), "s1")
	assert.Equal(t, 1, res.Forced)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, xgate.ErrSessionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("synthesis not interrupted by session cleanup")
	}
	// 会话清理不计为引擎故障。
	assert.Equal(t, "closed", s.BreakerState())
}

func TestSynthesize_Observed(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	obs, err := xmetrics.NewOTelObserver(xmetrics.WithTracerProvider(tp))
	require.NoError(t, err)

	g := newTestGate(t)
	s := newTestService(t, g, NewSimEngine(WithDelay(0)), WithObserver(obs))
	ctx := context.Background()

	_, err = s.Synthesize(ctx, Request{VoiceID: "v1", Text: "Observed."})
	require.NoError(t, err)

	h, err := g.Acquire(ctx, xgate.Request{ResourceID: "v1"})
	require.NoError(t, err)
	_, err = s.Synthesize(ctx, Request{VoiceID: "v1", Text: "Busy.", Timeout: 5 * time.Millisecond})
	require.ErrorIs(t, err, xgate.ErrAdmissionTimeout)
	require.NoError(t, h.Release())

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	status := func(i int) string {
		for _, kv := range spans[i].Attributes {
			if kv.Key == attribute.Key("status") {
				return kv.Value.AsString()
			}
		}
		return ""
	}
	assert.Equal(t, "synthesize", spans[0].Name)
	assert.Equal(t, string(xmetrics.StatusOK), status(0))
	assert.Equal(t, string(xmetrics.StatusRejected), status(1))
}
