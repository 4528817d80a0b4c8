// Package metrics provides Prometheus metrics for recorded traffic.
//
// # Overview
//
// The Collector implements recorder.Observer and turns recorder outcomes
// into Prometheus series on its own registry:
//
//   - requests_total{method,route,status}: completed requests, status as a class ("2xx")
//   - request_duration_seconds{method,route}: handler duration
//   - body_bytes{direction}: request and response body sizes
//   - transport_errors_total{kind}: write errors, client aborts and panics
//   - capture_fallbacks_total{field}: record fields rendered with a fallback
//
// All names carry the configured namespace and subsystem, "loupe_recorder_"
// by default.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	rec := recorder.New(sink, opts).WithObserver(collector)
//	r.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Cardinality Management
//
// Route labels are route patterns, so "/users/1" and "/users/2" share
// "/users/{id}". A CardinalityLimiter caps the number of method and route
// pairs; pairs beyond the cap are aggregated under the route "other".
//
// # Totals
//
// Totals sums the counters over all labels by gathering the registry. The
// periodic summary uses it to report activity between two runs.
package metrics
