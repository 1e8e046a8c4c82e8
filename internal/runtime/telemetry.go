package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/loqalabs/loqa-present/internal/config"
	"github.com/loqalabs/loqa-present/internal/script"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

// scriptBuckets covers a fast local model up to a slow remote one.
var scriptBuckets = []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120}

// telemetry owns the trace and meter providers of one runtime. Metrics are
// collected into a registry of its own so several runtimes can coexist in
// a process.
type telemetry struct {
	traces   *sdktrace.TracerProvider
	metrics  *sdkmetric.MeterProvider
	handler  http.Handler
	exporter string
}

func setupTelemetry(ctx context.Context, cfg config.Config, logger *slog.Logger) (*telemetry, error) {
	res, err := resource.New(ctx, resource.WithAttributes(presentationAttributes(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	t := &telemetry{}
	spans, name, err := spanExporter(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	t.exporter = name
	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}
	if spans != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spans))
	}
	t.traces = sdktrace.NewTracerProvider(traceOpts...)

	registry := prometheus.NewRegistry()
	reader, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		_ = t.traces.Shutdown(ctx)
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	t.metrics = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: script.DurationMetric},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: scriptBuckets}},
		)),
	)
	t.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	logger.Info("telemetry initialized",
		slog.String("traces", name),
		slog.String("narrator", cfg.Player.Narrator),
		slog.String("llm_mode", cfg.LLM.Mode),
	)
	return t, nil
}

// install makes the providers the process-wide defaults.
func (t *telemetry) install() {
	otel.SetTracerProvider(t.traces)
	otel.SetMeterProvider(t.metrics)
}

func (t *telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.metrics.Shutdown(ctx), t.traces.Shutdown(ctx))
}

// presentationAttributes describe the runtime and how it plays
// presentations, so traces and metrics can be split by narrator and model.
func presentationAttributes(cfg config.Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.RuntimeName),
		attribute.String("deployment.environment", cfg.Environment),
		attribute.String("loqa.present.narrator", cfg.Player.Narrator),
		attribute.String("loqa.present.sink", cfg.Player.Sink),
		attribute.Int("loqa.present.transition_ms", cfg.Player.TransitionMS),
		attribute.String("loqa.present.llm_mode", cfg.LLM.Mode),
	}
	if cfg.TTS.Enabled {
		attrs = append(attrs, attribute.String("loqa.present.tts_mode", cfg.TTS.Mode))
	}
	return attrs
}

// spanExporter picks OTLP when an endpoint is set, then stdout when asked
// for. Without either, spans are sampled but not exported.
func spanExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, string, error) {
	if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		return exp, "otlp", err
	}
	if cfg.StdoutTraces {
		// Logs own stdout.
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		return exp, "stdout", err
	}
	return nil, "none", nil
}
