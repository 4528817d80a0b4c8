// Package server provides the recording HTTP server.
//
// The server ties the recorder, the supporting middleware and the routes
// together and manages the listener lifecycle.
//
// # Middleware Chain
//
// Every route, including health and metrics, runs inside the recorder:
//
//	Recorder → RealIP (server.trust_proxy) → Recovery → CORS → router
//
// # Routes
//
//   - telemetry.health paths (GET, HEAD): liveness, readiness, version
//   - telemetry.metrics.path (GET): Prometheus exposition
//   - everything else: the upstream reverse proxy when upstream.url is
//     set, otherwise the built-in echo routes
//
// # Basic Usage
//
//	rec := recorder.New(sink, recorder.OptionsFromConfig(&cfg.Recorder, cfg.Server.TrustProxy))
//	srv, err := server.NewServer(cfg, server.Dependencies{
//	    Recorder: rec,
//	    Metrics:  collector,
//	    Health:   health.New(cfg.Telemetry.Health.CheckTimeout),
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
//
// Start returns after ctx is cancelled and in-flight requests have drained
// or server.shutdown_timeout has elapsed.
package server
