package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// W3C Trace Context Propagation
//
// The W3C Trace Context specification (https://www.w3.org/TR/trace-context/)
// defines standard HTTP headers for propagating trace context across service
// boundaries.
//
// traceparent: Required header containing trace context
// Format: version-trace_id-parent_id-trace_flags
// Example: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// tracestate: Optional header containing vendor-specific trace context
// Format: key1=value1,key2=value2

// propagator handles W3C Trace Context and W3C Baggage.
var propagator propagation.TextMapPropagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Propagator returns the text map propagator used by loupe.
func Propagator() propagation.TextMapPropagator {
	return propagator
}

// Install registers Propagator as the process-wide OpenTelemetry
// propagator so instrumented libraries agree with the recorder.
func Install() {
	otel.SetTextMapPropagator(propagator)
}

// Extract extracts trace context from HTTP headers and returns a context
// carrying the remote span context.
//
// If no trace context is found in the headers, the original context is returned.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return propagator.Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject writes the trace context of ctx into headers.
func Inject(ctx context.Context, headers http.Header) {
	propagator.Inject(ctx, propagation.HeaderCarrier(headers))
}

// IDs returns the trace ID and parent span ID carried by a traceparent
// header. ok is false when the headers hold no valid trace context.
func IDs(headers http.Header) (traceID, spanID string, ok bool) {
	if headers.Get("traceparent") == "" {
		return "", "", false
	}
	return IDsFromContext(Extract(context.Background(), headers))
}

// IDsFromContext returns the IDs of the span context stored in ctx.
func IDsFromContext(ctx context.Context) (traceID, spanID string, ok bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}
