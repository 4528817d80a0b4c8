package config

import "time"

// Config is the root configuration structure for loupe.
type Config struct {
	// Server contains HTTP listener configuration including listen address,
	// timeouts, proxy trust and CORS.
	Server ServerConfig `yaml:"server"`

	// Upstream configures the service that recorded traffic is forwarded
	// to. When no URL is set, loupe serves its built-in echo routes.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Recorder controls what the request/response recorder captures and
	// where records are written.
	Recorder RecorderConfig `yaml:"recorder"`

	// Telemetry contains configuration for logging, metrics and health
	// endpoints.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Reload controls hot reload of this file.
	Reload ReloadSettings `yaml:"reload"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:3000", "0.0.0.0:3000").
	// Default: "127.0.0.1:3000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// TrustProxy makes the client address come from X-Forwarded-For,
	// X-Real-IP or True-Client-IP instead of the socket peer.
	// Default: false
	TrustProxy bool `yaml:"trust_proxy"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS is enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// "*" reflects any request origin back to the client.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "HEAD", "PUT", "PATCH", "POST", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// An empty list reflects Access-Control-Request-Headers.
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers that are exposed to the client.
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600 (1 hour)
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials (cookies, auth headers)
	// are allowed in CORS requests.
	// Default: true
	AllowCredentials bool `yaml:"allow_credentials"`
}

// UpstreamConfig contains reverse proxy configuration.
type UpstreamConfig struct {
	// URL is the base URL requests are forwarded to.
	// Example: "http://127.0.0.1:8080"
	URL string `yaml:"url"`

	// FlushInterval is how often streamed upstream responses are flushed to
	// the client. A negative value flushes after every write.
	// Default: 0 (flush when the upstream response completes)
	FlushInterval time.Duration `yaml:"flush_interval"`

	// DialTimeout bounds connection setup to the upstream and the readiness
	// check.
	// Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// PreserveHost forwards the inbound Host header instead of the upstream
	// host.
	// Default: false
	PreserveHost bool `yaml:"preserve_host"`
}

// RecorderConfig contains request/response recorder configuration.
type RecorderConfig struct {
	// Enabled installs the recorder in front of all routes.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Sink selects the record output.
	// Options: "console" (human-readable blocks), "log" (structured log lines)
	// Default: "console"
	Sink string `yaml:"sink"`

	// Color enables ANSI styling and JSON highlighting in the console sink.
	// Default: false
	Color bool `yaml:"color"`

	// CaptureRequestBody reads and records request bodies.
	// Default: true
	CaptureRequestBody bool `yaml:"capture_request_body"`

	// CaptureResponseBody records the first emitted response payload.
	// Default: true
	CaptureResponseBody bool `yaml:"capture_response_body"`

	// MaxBodyBytes bounds how much of each body is buffered for the record.
	// Bodies are always delivered to handlers and clients in full.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// RedactHeaders masks sensitive header and cookie values in records.
	// Default: false
	RedactHeaders bool `yaml:"redact_headers"`

	// RedactBodies applies the PII patterns to rendered bodies.
	// Default: false
	RedactBodies bool `yaml:"redact_bodies"`

	// SkipPaths lists exact request paths that are not recorded.
	// Default: []
	SkipPaths []string `yaml:"skip_paths"`

	// TraceContext extracts W3C traceparent IDs into records.
	// Default: true
	TraceContext bool `yaml:"trace_context"`

	// SummarySchedule is a cron expression for the periodic summary log
	// line. Empty disables the summary.
	// Example: "*/5 * * * *"
	SummarySchedule string `yaml:"summary_schedule"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII enables automatic PII redaction in log fields.
	// Default: false
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom PII redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom PII redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "loupe"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "recorder"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines histogram buckets for request duration
	// in seconds.
	// Default: [0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for the version information endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// ReloadSettings controls configuration hot reload.
type ReloadSettings struct {
	// Enabled watches the configuration file and applies recorder and log
	// level changes without a restart.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Debounce is the quiet period after a file change before reloading.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`
}
