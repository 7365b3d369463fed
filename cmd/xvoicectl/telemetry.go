package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/omeyang/xvoice/pkg/observability/xlog"
)

// telemetry 持有进程的 OTel provider 与指标抓取端点。
//
// 指标经 Prometheus exporter 进入独立 registry，由 GET /metrics 暴露；
// span 结束时以 debug 级别写入日志。
type telemetry struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        http.Handler
}

func newTelemetry(logger xlog.Logger) (*telemetry, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	return &telemetry{
		meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		tracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanLogExporter{logger: logger})),
		metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

// Shutdown 刷新并关闭两个 provider。
func (t *telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.meterProvider.Shutdown(ctx), t.tracerProvider.Shutdown(ctx))
}

// spanLogExporter 把结束的 span 写成 debug 日志。
type spanLogExporter struct {
	logger xlog.Logger
}

func (e spanLogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := []slog.Attr{
			slog.String("span", s.Name()),
			slog.String("trace_id", s.SpanContext().TraceID().String()),
			slog.String("status", s.Status().Code.String()),
			xlog.Duration(s.EndTime().Sub(s.StartTime())),
		}
		for _, kv := range s.Attributes() {
			attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
		}
		e.logger.Debug(ctx, "span ended", attrs...)
	}
	return nil
}

func (spanLogExporter) Shutdown(context.Context) error { return nil }
