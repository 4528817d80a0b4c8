// Package tracing provides W3C Trace Context propagation for loupe.
//
// loupe does not start or export spans. It reads the traceparent header of
// inbound requests so that recorded requests can be joined with traces kept
// by the services in front of and behind it:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
//	traceID, spanID, ok := tracing.IDs(r.Header)
//
// Extract and Inject use a composite propagator covering Trace Context and
// Baggage. Install makes the same propagator the OpenTelemetry global.
package tracing
