// Package telemetry wires the process-wide OpenTelemetry trace pipeline.
//
// Every instrumented package acquires its tracer through the otel global,
// so installing a provider here is what turns those spans from no-ops into
// exported traces. Telemetry is disabled by default: without a collector
// the instrumentation stays inert and free.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config holds telemetry configuration.
type Config struct {
	// Enabled turns on trace export. Off by default: new deployments
	// rarely have a collector.
	Enabled bool

	// Endpoint is the OTLP gRPC collector address. Default: localhost:4317
	Endpoint string

	// Insecure disables TLS on the collector connection. Only honored for
	// local endpoints.
	Insecure bool

	// ServiceName identifies this process in traces. Default: doccached
	ServiceName string

	// ServiceVersion is reported alongside the service name.
	ServiceVersion string

	// SampleRate is the trace sampling ratio in [0,1]. Default: 1.0
	SampleRate float64

	// ShutdownTimeout bounds the final flush. Default: 5s
	ShutdownTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.ServiceName == "" {
		c.ServiceName = "doccached"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "dev"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample_rate must be between 0 and 1, got %f", c.SampleRate)
	}
	return nil
}

// Telemetry owns the installed trace provider and its shutdown.
type Telemetry struct {
	config         Config
	tracerProvider *trace.TracerProvider
}

// Option configures provider creation.
type Option func(*options)

type options struct {
	exporter trace.SpanExporter
}

// WithSpanExporter overrides the OTLP exporter (for testing).
func WithSpanExporter(exp trace.SpanExporter) Option {
	return func(o *options) {
		o.exporter = exp
	}
}

// New initializes the trace pipeline and installs it as the otel global
// provider. With Enabled false it returns a no-op instance and leaves the
// global untouched, so all package-level tracers stay no-ops.
func New(ctx context.Context, cfg Config, opts ...Option) (*Telemetry, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	exporter := o.exporter
	if exporter == nil {
		expOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			expOpts = append(expOpts, otlptracegrpc.WithInsecure())
		}
		var err error
		exporter, err = otlptracegrpc.New(ctx, expOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating trace exporter: %w", err)
		}
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	var sampler trace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = trace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = trace.NeverSample()
	default:
		sampler = trace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(sampler)),
	)

	t.tracerProvider = tp
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

// Enabled reports whether a provider was installed.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.tracerProvider != nil
}

// Endpoint returns the collector address after defaulting.
func (t *Telemetry) Endpoint() string {
	return t.config.Endpoint
}

// ForceFlush immediately exports pending spans.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil || t.tracerProvider == nil {
		return nil
	}
	return t.tracerProvider.ForceFlush(ctx)
}

// Shutdown flushes and stops the provider. Safe on a no-op instance.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.tracerProvider == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownTimeout)
		defer cancel()
	}

	if err := t.tracerProvider.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("trace provider shutdown: %w", err)
	}
	return nil
}
