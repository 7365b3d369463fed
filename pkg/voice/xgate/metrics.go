package xgate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// 设计决策: 指标前缀使用 "xgate.*"，与 Meter scope 名称一致。
// 不带 voice/session 标签，避免会话 ID 造成高基数。
const (
	meterName = "xgate"

	metricNameAcquireTotal   = "xgate.acquire.total"
	metricNameAcquireWait    = "xgate.acquire.wait"
	metricNameHoldDuration   = "xgate.hold.duration"
	metricNameReleaseTotal   = "xgate.release.total"
	metricNameLocksActive    = "xgate.locks.active"
	metricNameLocksTotal     = "xgate.locks.total"
	metricNameSessionsActive = "xgate.sessions.active"

	attrOutcome = "outcome"
	attrForced  = "forced"
)

// Outcome 是一次获取尝试的结果标签。
type Outcome string

// 获取结果
const (
	OutcomeAcquired  Outcome = "acquired"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeRevoked   Outcome = "revoked"
	OutcomeRejected  Outcome = "rejected"
)

// waitBuckets 等待时长直方图的桶边界（秒）
var waitBuckets = []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics Gate 的 OTel 指标。nil *Metrics 的所有方法都是 no-op。
type Metrics struct {
	acquireTotal metric.Int64Counter
	acquireWait  metric.Float64Histogram
	holdDuration metric.Float64Histogram
	releaseTotal metric.Int64Counter
	registration metric.Registration
}

// NewMetrics 创建指标收集器，并为 g 注册锁与会话的观测型 gauge。
// meterProvider 为 nil 时返回 nil（不收集指标）。
func NewMetrics(meterProvider metric.MeterProvider, g *Gate) (*Metrics, error) {
	if meterProvider == nil {
		return nil, nil
	}
	meter := meterProvider.Meter(meterName)
	m := &Metrics{}

	var err error
	if m.acquireTotal, err = meter.Int64Counter(metricNameAcquireTotal,
		metric.WithDescription("声音准入尝试次数"), metric.WithUnit("{acquire}")); err != nil {
		return nil, err
	}
	if m.releaseTotal, err = meter.Int64Counter(metricNameReleaseTotal,
		metric.WithDescription("声音持有释放次数"), metric.WithUnit("{release}")); err != nil {
		return nil, err
	}
	if m.acquireWait, err = meter.Float64Histogram(metricNameAcquireWait,
		metric.WithDescription("声音准入等待时长"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(waitBuckets...)); err != nil {
		return nil, err
	}
	if m.holdDuration, err = meter.Float64Histogram(metricNameHoldDuration,
		metric.WithDescription("声音持有时长"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(waitBuckets...)); err != nil {
		return nil, err
	}

	locksActive, err := meter.Int64ObservableGauge(metricNameLocksActive,
		metric.WithDescription("当前被持有的隔离键数"), metric.WithUnit("{lock}"))
	if err != nil {
		return nil, err
	}
	locksTotal, err := meter.Int64ObservableGauge(metricNameLocksTotal,
		metric.WithDescription("当前存活的锁条目数"), metric.WithUnit("{lock}"))
	if err != nil {
		return nil, err
	}
	sessionsActive, err := meter.Int64ObservableGauge(metricNameSessionsActive,
		metric.WithDescription("当前有记录的会话数"), metric.WithUnit("{session}"))
	if err != nil {
		return nil, err
	}

	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := g.Stats()
		o.ObserveInt64(locksActive, int64(st.ActiveLocks))
		o.ObserveInt64(locksTotal, int64(st.TotalLocks))
		o.ObserveInt64(sessionsActive, int64(st.ActiveSessions))
		return nil
	}, locksActive, locksTotal, sessionsActive)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAcquire 记录一次获取尝试。
func (m *Metrics) RecordAcquire(ctx context.Context, outcome Outcome, waited time.Duration) {
	if m == nil {
		return
	}
	// 使用 context.WithoutCancel 确保即使 ctx 被取消，指标仍能记录
	metricsCtx := context.WithoutCancel(ctx)
	attrs := metric.WithAttributes(attribute.String(attrOutcome, string(outcome)))
	m.acquireTotal.Add(metricsCtx, 1, attrs)
	m.acquireWait.Record(metricsCtx, waited.Seconds(), attrs)
}

// RecordRelease 记录一次释放及持有时长。
func (m *Metrics) RecordRelease(ctx context.Context, held time.Duration, forced bool) {
	if m == nil {
		return
	}
	metricsCtx := context.WithoutCancel(ctx)
	attrs := metric.WithAttributes(attribute.Bool(attrForced, forced))
	m.releaseTotal.Add(metricsCtx, 1, attrs)
	m.holdDuration.Record(metricsCtx, held.Seconds(), attrs)
}

// Close 注销观测回调。
func (m *Metrics) Close() error {
	if m == nil || m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}
