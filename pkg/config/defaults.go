package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:3000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// CORS defaults
	DefaultCORSEnabled          = true
	DefaultCORSMaxAge           = 3600 // 1 hour
	DefaultCORSAllowCredentials = true

	// Upstream defaults
	DefaultUpstreamDialTimeout = 5 * time.Second

	// Recorder defaults
	DefaultRecorderEnabled      = true
	DefaultRecorderSink         = SinkConsole
	DefaultCaptureRequestBody   = true
	DefaultCaptureResponseBody  = true
	DefaultMaxBodyBytes         = int64(1048576) // 1MB
	DefaultRecorderTraceContext = true

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsEnabled     = true
	DefaultPrometheusPath     = "/metrics"
	DefaultMetricsNamespace   = "loupe"
	DefaultMetricsSubsystem   = "recorder"
	DefaultHealthEnabled      = true
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultVersionPath        = "/version"
	DefaultHealthCheckTimeout = 5 * time.Second

	// Reload defaults
	DefaultReloadDebounce = 100 * time.Millisecond
)

// Recorder sink names.
const (
	SinkConsole = "console"
	SinkLog     = "log"
)

// DefaultDurationBuckets are request duration histogram buckets in seconds.
var DefaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// NewDefault returns a Config with every default applied, including the
// boolean options that default to true. Files are decoded on top of it so
// an explicit false survives.
func NewDefault() *Config {
	cfg := &Config{
		Server: ServerConfig{
			CORS: CORSConfig{
				Enabled:          DefaultCORSEnabled,
				AllowCredentials: DefaultCORSAllowCredentials,
			},
		},
		Recorder: RecorderConfig{
			Enabled:             DefaultRecorderEnabled,
			CaptureRequestBody:  DefaultCaptureRequestBody,
			CaptureResponseBody: DefaultCaptureResponseBody,
			TraceContext:        DefaultRecorderTraceContext,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Health:  HealthConfig{Enabled: DefaultHealthEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	applyCORSDefaults(cfg)

	// Upstream defaults
	if cfg.Upstream.DialTimeout == 0 {
		cfg.Upstream.DialTimeout = DefaultUpstreamDialTimeout
	}

	// Recorder defaults
	if cfg.Recorder.Sink == "" {
		cfg.Recorder.Sink = DefaultRecorderSink
	}
	if cfg.Recorder.MaxBodyBytes == 0 {
		cfg.Recorder.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.VersionPath == "" {
		cfg.Telemetry.Health.VersionPath = DefaultVersionPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}

	// Reload defaults
	if cfg.Reload.Debounce == 0 {
		cfg.Reload.Debounce = DefaultReloadDebounce
	}
}

// applyCORSDefaults applies default values to CORS configuration.
func applyCORSDefaults(cfg *Config) {
	cors := &cfg.Server.CORS

	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = []string{"*"}
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE", "OPTIONS"}
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}
