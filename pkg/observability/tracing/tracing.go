package tracing

import (
    "context"
    "sync/atomic"

    "go.opentelemetry.io/otel"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/codes"
    "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
    sdktrace "go.opentelemetry.io/otel/sdk/trace"
    "go.opentelemetry.io/otel/trace"
)

var enabled atomic.Bool

// Setup configures a global tracer provider when enable=true.
// It returns a shutdown function which should be deferred.
func Setup(enable bool) (func(context.Context) error, error) {
    enabled.Store(enable)
    if !enable {
        return func(context.Context) error { return nil }, nil
    }
    exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
    if err != nil {
        return nil, err
    }
    tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
    Install(tp)
    return tp.Shutdown, nil
}

// Install makes tp the global tracer provider and enables spans.
func Install(tp trace.TracerProvider) {
    otel.SetTracerProvider(tp)
    enabled.Store(true)
}

// Span wraps an optional OpenTelemetry span. The zero value is a no-op.
type Span struct{ s trace.Span }

// SetAttr records a string attribute on the span.
func (s Span) SetAttr(k, v string) {
    if s.s != nil { s.s.SetAttributes(attribute.String(k, v)) }
}

// End finishes the span, marking it failed when err is non-nil.
func (s Span) End(err error) {
    if s.s == nil { return }
    if err != nil {
        s.s.RecordError(err)
        s.s.SetStatus(codes.Error, err.Error())
    }
    s.s.End()
}

// Start starts a span if tracing is enabled.
func Start(ctx context.Context, name string) (context.Context, Span) {
    if !enabled.Load() {
        return ctx, Span{}
    }
    ctx, span := otel.Tracer("go-meshseed").Start(ctx, name)
    return ctx, Span{s: span}
}

// StartSpan starts a span if tracing is enabled and returns a plain closer.
func StartSpan(ctx context.Context, name string) (context.Context, func()) {
    ctx, s := Start(ctx, name)
    return ctx, func() { s.End(nil) }
}
