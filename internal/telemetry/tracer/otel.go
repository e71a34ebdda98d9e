package tracer

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yndnr/trajsnap/internal/infra/buildinfo"
)

// InstrumentationName names the tracer every span is started from.
const InstrumentationName = "github.com/yndnr/trajsnap"

// DefaultServiceName is reported when Config.ServiceName is empty.
const DefaultServiceName = "snapctl"

// Config configures span export.
type Config struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	// SampleRatio is the fraction of root spans kept; children follow
	// their parent.
	SampleRatio float64
}

// ErrNoEndpoint is returned by Setup when tracing is enabled without an
// endpoint.
var ErrNoEndpoint = errors.New("tracer: endpoint is required")

// Setup installs the global tracer provider described by cfg. The
// returned function flushes pending spans; it is never nil.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}
	if cfg.Endpoint == "" {
		return noop, ErrNoEndpoint
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, err
	}
	return install(ctx, cfg, sdktrace.WithBatcher(exporter))
}

// install builds and registers a provider around the given span processor
// option.
func install(ctx context.Context, cfg Config, processor sdktrace.TracerProviderOption) (func(context.Context) error, error) {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(name),
		semconv.ServiceVersion(buildinfo.Version),
	))
	if err != nil {
		return func(context.Context) error { return nil }, err
	}

	tp := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// Start starts a span from the global provider.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// Extract returns ctx carrying the remote span context found in h, if any.
func Extract(ctx context.Context, h http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(h))
}

// Inject writes the span context of ctx into h for an outgoing request.
func Inject(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
