// Package telemetry provides an OpenTelemetry-backed implementation of
// core.Telemetry. Traces export over OTLP/gRPC; metrics go through the
// global meter provider so hosts can install their own pipeline.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/switchyard-ai/switchyard/core"
)

// Config controls telemetry initialization
type Config struct {
	ServiceName string
	// Endpoint is the OTLP gRPC collector address, e.g. "otel-collector:4317"
	Endpoint string
	Insecure bool
}

// OTelProvider implements core.Telemetry
type OTelProvider struct {
	tracer   trace.Tracer
	meter    metric.Meter
	provider *sdktrace.TracerProvider

	mu       sync.Mutex
	counters map[string]metric.Float64Counter
}

// Initialize sets up the OTLP trace exporter and returns a provider.
// The returned provider must be Shutdown on exit to flush spans.
func Initialize(ctx context.Context, cfg Config) (*OTelProvider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "switchyard"
	}
	if cfg.Endpoint == "" {
		return nil, &core.CoreError{
			Op:      "telemetry.Initialize",
			Kind:    "config",
			Message: "OTLP endpoint not configured",
			Err:     core.ErrMissingConfiguration,
		}
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, &core.CoreError{
			Op:   "telemetry.Initialize",
			Kind: "transport",
			Err:  fmt.Errorf("%w: %v", core.ErrTransport, err),
		}
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &OTelProvider{
		tracer:   provider.Tracer(cfg.ServiceName),
		meter:    otel.Meter(cfg.ServiceName),
		provider: provider,
		counters: make(map[string]metric.Float64Counter),
	}, nil
}

// StartSpan begins a traced operation
func (p *OTelProvider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric adds to a named counter, creating it on first use
func (p *OTelProvider) RecordMetric(name string, value float64, labels map[string]string) {
	p.mu.Lock()
	counter, exists := p.counters[name]
	if !exists {
		created, err := p.meter.Float64Counter(name)
		if err != nil {
			p.mu.Unlock()
			return
		}
		p.counters[name] = created
		counter = created
	}
	p.mu.Unlock()

	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrs...))
}

// Shutdown flushes pending spans
func (p *OTelProvider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

// otelSpan adapts an OTel span to core.Span
type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	if err != nil {
		s.span.RecordError(err)
	}
}
