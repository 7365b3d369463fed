package xsynth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xvoice/pkg/observability/xlog"
	"github.com/omeyang/xvoice/pkg/observability/xmetrics"
	"github.com/omeyang/xvoice/pkg/voice/xgate"
)

// Request 一次合成请求。
type Request struct {
	// RequestID 为空时由门控生成。
	RequestID string
	VoiceID   string
	SessionID string
	Text      string
	Params    VoiceParams
	// Timeout 单次准入等待上限，<= 0 使用门控默认值。
	Timeout time.Duration
}

// Result 一次合成的结果。
//
// 缓存命中时 Audio 与其他请求共享，调用方不得修改 Samples。
type Result struct {
	Audio     *Audio
	RequestID string
	Chunks    int
	Cached    bool
	// Waited 最后一次准入的等待时长，缓存命中时为 0。
	Waited time.Duration
	// Attempts 准入尝试次数，缓存命中时为 0。
	Attempts int
}

// CacheStats 缓存统计。
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Len    int   `json:"len"`
}

type cacheKey struct {
	voice  string
	text   string
	params VoiceParams
}

// Service 在门控保护下调用合成引擎，并发安全。
type Service struct {
	gate    *xgate.Gate
	engine  Synthesizer
	breaker *gobreaker.CircuitBreaker[*Audio]
	cache   *lru.Cache[cacheKey, *Audio]
	opts    options
	logger  xlog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewService 创建合成服务。gate 的生命周期由调用方管理。
func NewService(gate *xgate.Gate, engine Synthesizer, opts ...Option) (*Service, error) {
	if gate == nil {
		return nil, ErrNilGate
	}
	if engine == nil {
		return nil, ErrNilEngine
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = xlog.Discard()
	}
	s := &Service{
		gate:   gate,
		engine: engine,
		opts:   o,
		logger: logger.With(xlog.Component("xsynth")),
	}

	if o.cacheSize > 0 {
		cache, err := lru.New[cacheKey, *Audio](o.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("xsynth: create cache: %w", err)
		}
		s.cache = cache
	}

	s.breaker = gobreaker.NewCircuitBreaker[*Audio](gobreaker.Settings{
		Name:        o.breakerName,
		MaxRequests: 1,
		Timeout:     o.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.breakerFails
		},
		IsSuccessful: isEngineSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn(context.Background(), "engine breaker state changed",
				slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return s, nil
}

// isEngineSuccess 取消类错误不计为引擎故障。
func isEngineSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, xgate.ErrSessionClosed)
}

// Synthesize 合成 req.Text。
//
// 声音忙时按配置重试准入，重试耗尽后返回匹配 xgate.ErrAdmissionTimeout 的错误。
// 熔断器打开时不占用声音，直接返回 ErrEngineUnavailable。
// 会话在合成中途被清理时返回匹配 xgate.ErrSessionClosed 的错误。
func (s *Service) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if req.VoiceID == "" {
		return nil, ErrInvalidVoice
	}
	if err := xgate.ValidateIDs(req.VoiceID, req.SessionID); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	params := req.Params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	ctx, span := xmetrics.Start(ctx, s.opts.observer, xmetrics.SpanOptions{
		Component: "xsynth",
		Operation: "synthesize",
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String("voice_id", req.VoiceID),
			xmetrics.Int("text_len", len(text)),
		},
	})
	res, err := s.synthesize(ctx, req, text, params)

	result := xmetrics.Result{Err: err}
	if isRejection(err) {
		result.Status = xmetrics.StatusRejected
	}
	if res != nil {
		result.Attrs = []xmetrics.Attr{
			xmetrics.Bool("cached", res.Cached),
			xmetrics.Int("chunks", res.Chunks),
			xmetrics.Int("attempts", res.Attempts),
		}
	}
	span.End(result)
	return res, err
}

func isRejection(err error) bool {
	return errors.Is(err, xgate.ErrAdmissionTimeout) || errors.Is(err, ErrEngineUnavailable)
}

func (s *Service) synthesize(ctx context.Context, req Request, text string, params VoiceParams) (*Result, error) {
	chunks := ChunkText(text, s.opts.chunkSize)

	key := cacheKey{voice: req.VoiceID, text: text, params: params}
	cacheable := s.cache != nil && params.Seed != 0
	if cacheable {
		if audio, ok := s.cache.Get(key); ok {
			s.hits.Add(1)
			s.logger.Debug(ctx, "synthesis cache hit", xlog.VoiceID(req.VoiceID))
			return &Result{Audio: audio, RequestID: req.RequestID, Chunks: len(chunks), Cached: true}, nil
		}
		s.misses.Add(1)
	}

	if s.breaker.State() == gobreaker.StateOpen {
		return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, gobreaker.ErrOpenState)
	}

	attempts := 0
	res, err := retry.NewWithData[*Result](
		retry.Context(ctx),
		retry.Attempts(s.opts.retryAttempts+1),
		retry.Delay(s.opts.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, xgate.ErrAdmissionTimeout) }),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn(ctx, "voice busy, retrying admission",
				xlog.VoiceID(req.VoiceID), xlog.Count(int64(n)+1), xlog.Err(err))
		}),
	).Do(func() (*Result, error) {
		attempts++
		return s.synthesizeOnce(ctx, req, chunks, params)
	})
	if err != nil {
		return nil, err
	}
	res.Attempts = attempts

	if cacheable {
		s.cache.Add(key, res.Audio)
	}
	return res, nil
}

// synthesizeOnce 在一次持有内顺序合成所有块。
func (s *Service) synthesizeOnce(ctx context.Context, req Request, chunks []string, params VoiceParams) (res *Result, err error) {
	h, err := s.gate.Acquire(ctx, xgate.Request{
		RequestID:  req.RequestID,
		ResourceID: req.VoiceID,
		ScopeID:    req.SessionID,
		Timeout:    req.Timeout,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if relErr := h.Release(); relErr != nil {
			res = nil
			err = errors.Join(err, relErr)
		}
	}()

	hctx := h.Context()
	parts := make([]*Audio, 0, len(chunks))
	for i, chunk := range chunks {
		audio, genErr := s.breaker.Execute(func() (*Audio, error) {
			a, err := s.engine.Generate(hctx, chunk, params)
			if err == nil && a == nil {
				err = errors.New("xsynth: engine returned no audio")
			}
			return a, err
		})
		if genErr != nil {
			if errors.Is(genErr, gobreaker.ErrOpenState) || errors.Is(genErr, gobreaker.ErrTooManyRequests) {
				return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, genErr)
			}
			return nil, fmt.Errorf("xsynth: generate chunk %d/%d: %w", i+1, len(chunks), genErr)
		}
		parts = append(parts, audio)
	}

	audio, err := Concat(parts)
	if err != nil {
		return nil, err
	}
	s.logger.Debug(hctx, "synthesis completed",
		xlog.Count(int64(len(chunks))), xlog.Duration(time.Since(h.AcquiredAt())))
	return &Result{Audio: audio, RequestID: h.RequestID(), Chunks: len(chunks), Waited: h.Waited()}, nil
}

// CacheStats 返回缓存统计。缓存关闭时 Len 为 0。
func (s *Service) CacheStats() CacheStats {
	st := CacheStats{Hits: s.hits.Load(), Misses: s.misses.Load()}
	if s.cache != nil {
		st.Len = s.cache.Len()
	}
	return st
}

// BreakerState 返回引擎熔断器状态（closed/half-open/open）。
func (s *Service) BreakerState() string {
	return s.breaker.State().String()
}

// Gate 返回服务使用的门控。
func (s *Service) Gate() *xgate.Gate {
	return s.gate
}
