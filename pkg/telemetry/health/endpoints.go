package health

import (
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"

	"mercator-hq/loupe/pkg/config"
	"mercator-hq/loupe/pkg/respond"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	// Version is the semantic version (e.g., "1.0.0")
	Version string `json:"version"`

	// Commit is the git commit hash
	Commit string `json:"commit"`

	// BuildTime is when the binary was built
	BuildTime string `json:"build_time"`

	// GoVersion is the Go version used to build
	GoVersion string `json:"go_version"`
}

// LivenessHandler returns an HTTP handler for the liveness probe endpoint.
//
// Example response:
//
//	{
//	    "status": "ok",
//	    "timestamp": "2026-03-01T10:30:00Z"
//	}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns an HTTP handler for the readiness probe endpoint.
//
// Returns:
//   - 200 OK: every check passed
//   - 503 Service Unavailable: at least one check failed
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "upstream": {"status": "unhealthy", "message": "upstream 127.0.0.1:8080 unreachable: ...", "duration_ms": 0.4}
//	    },
//	    "timestamp": "2026-03-01T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.CheckReadiness(r.Context())

		code := http.StatusOK
		if status.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler returns an HTTP handler for the version information endpoint.
func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	info := VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, info)
	}
}

// Mount registers the liveness, readiness and version endpoints on r at
// the paths from cfg. GET and HEAD are accepted; chi answers other methods
// with 405.
func (c *Checker) Mount(r chi.Router, cfg config.HealthConfig, info VersionInfo) {
	routes := map[string]http.HandlerFunc{
		cfg.LivenessPath:  c.LivenessHandler(),
		cfg.ReadinessPath: c.ReadinessHandler(),
		cfg.VersionPath:   VersionHandler(info.Version, info.Commit, info.BuildTime),
	}
	for path, h := range routes {
		if path == "" {
			continue
		}
		r.Get(path, h)
		r.Head(path, h)
	}
}

// writeJSON writes v through respond.JSON, or only the headers for HEAD.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", respond.ContentTypeJSON)
		w.WriteHeader(status)
		return
	}
	_ = respond.JSON(w, status, v)
}
