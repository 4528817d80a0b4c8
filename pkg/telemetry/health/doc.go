// Package health provides liveness, readiness and version endpoints.
//
// # Endpoints
//
//   - liveness (default /health): 200 while the process serves requests
//   - readiness (default /ready): runs every registered check; 503 if any fails
//   - version (default /version): build information
//
// # Usage
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	if cfg.Upstream.URL != "" {
//	    check, err := health.DialCheck(cfg.Upstream.URL)
//	    if err != nil {
//	        return err
//	    }
//	    checker.RegisterCheck("upstream", check)
//	}
//	checker.Mount(router, cfg.Telemetry.Health, health.VersionInfo{Version: version})
//
// Checks run concurrently, each bounded by the checker timeout. A check
// that does not return in time is reported unhealthy with the message
// "health check timeout".
//
// Responses are written with respond.JSON, so probe traffic is recorded
// like any other request unless the paths are listed in
// recorder.skip_paths.
package health
