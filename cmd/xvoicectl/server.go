package main

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/omeyang/xvoice/pkg/observability/xlog"
	"github.com/omeyang/xvoice/pkg/voice/xgate"
	"github.com/omeyang/xvoice/pkg/voice/xsynth"
)

const (
	// maxRequestBody 限制 /v1/tts 请求体大小。
	maxRequestBody = 1 << 20
	// defaultRetryAfter 是 503 响应中 Retry-After 的下限（秒）。
	defaultRetryAfter = 1
)

// ttsRequest 是 POST /v1/tts 的请求体。
type ttsRequest struct {
	RequestID string             `json:"request_id,omitempty"`
	VoiceID   string             `json:"voice_id"`
	SessionID string             `json:"session_id,omitempty"`
	Text      string             `json:"text"`
	TimeoutMS int64              `json:"timeout_ms,omitempty"`
	Params    xsynth.VoiceParams `json:"params"`
}

type busyResponse struct {
	VoiceID   string `json:"voice_id"`
	SessionID string `json:"session_id,omitempty"`
	Busy      bool   `json:"busy"`
	Holder    string `json:"holder,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// newHandler 注册所有路由。
func newHandler(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tts", a.handleTTS)
	mux.HandleFunc("GET /v1/voices/{voice}/busy", a.handleBusy)
	mux.HandleFunc("DELETE /v1/sessions/{session}", a.handleCleanup)
	mux.HandleFunc("GET /v1/stats", a.handleStats)
	mux.Handle("GET /metrics", a.telemetry.metrics)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func (a *app) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.TimeoutMS < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "timeout_ms must not be negative"})
		return
	}

	res, err := a.synth.Synthesize(r.Context(), xsynth.Request{
		RequestID: req.RequestID,
		VoiceID:   req.VoiceID,
		SessionID: req.SessionID,
		Text:      req.Text,
		Params:    req.Params,
		Timeout:   time.Duration(req.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		a.writeSynthError(r.Context(), w, req, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "audio/L16; rate="+strconv.Itoa(res.Audio.SampleRate)+"; channels=1")
	h.Set("X-Sample-Rate", strconv.Itoa(res.Audio.SampleRate))
	h.Set("X-Audio-Duration-Ms", strconv.FormatInt(res.Audio.Duration.Milliseconds(), 10))
	h.Set("X-Chunks", strconv.Itoa(res.Chunks))
	h.Set("X-Cache", cacheHeader(res.Cached))
	h.Set("X-Admission-Wait-Ms", strconv.FormatInt(res.Waited.Milliseconds(), 10))
	if res.RequestID != "" {
		h.Set("X-Request-Id", res.RequestID)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Audio.PCM16())
}

func cacheHeader(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// writeSynthError 把合成错误映射为 HTTP 状态码。
func (a *app) writeSynthError(ctx context.Context, w http.ResponseWriter, req ttsRequest, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, xsynth.ErrEmptyText),
		errors.Is(err, xsynth.ErrInvalidVoice),
		errors.Is(err, xsynth.ErrInvalidParams),
		errors.Is(err, xgate.ErrInvalidResource),
		errors.Is(err, xgate.ErrInvalidScope):
		status = http.StatusBadRequest
	case errors.Is(err, xgate.ErrAdmissionTimeout):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(err)))
		status = http.StatusServiceUnavailable
	case errors.Is(err, xsynth.ErrEngineUnavailable), errors.Is(err, xgate.ErrClosed):
		w.Header().Set("Retry-After", strconv.Itoa(defaultRetryAfter))
		status = http.StatusServiceUnavailable
	case errors.Is(err, xgate.ErrSessionClosed):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		a.logger.Error(ctx, "synthesis failed",
			xlog.VoiceID(req.VoiceID), xlog.SessionID(req.SessionID), xlog.Err(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// retryAfterSeconds 以本次等待上限作为建议的重试间隔。
func retryAfterSeconds(err error) int {
	var te *xgate.AdmissionTimeoutError
	if errors.As(err, &te) && te.Timeout > 0 {
		if s := int(math.Ceil(te.Timeout.Seconds())); s > defaultRetryAfter {
			return s
		}
	}
	return defaultRetryAfter
}

func (a *app) handleBusy(w http.ResponseWriter, r *http.Request) {
	voice := r.PathValue("voice")
	session := r.URL.Query().Get("session")
	holder, busy := a.gate.ActiveHolder(voice, session)
	writeJSON(w, http.StatusOK, busyResponse{
		VoiceID:   voice,
		SessionID: session,
		Busy:      busy,
		Holder:    holder,
	})
}

func (a *app) handleCleanup(w http.ResponseWriter, r *http.Request) {
	res := a.gate.CleanupSession(r.Context(), r.PathValue("session"))
	writeJSON(w, http.StatusOK, res)
}

func (a *app) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
