package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "LOUPE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of NewDefault, remaining zero values receive
// defaults, and the result is validated. An empty path yields the defaults.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefault()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention LOUPE_SECTION_FIELD (e.g., LOUPE_SERVER_LISTEN_ADDRESS).
// PORT is honoured as a shorthand for listening on all interfaces at that
// port when LOUPE_SERVER_LISTEN_ADDRESS is unset.
//
// The loading sequence is:
// 1. Load YAML from file over defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg, os.LookupEnv)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// applyEnvOverrides applies environment variable overrides to the configuration.
// Unparseable values are ignored and the file value is kept.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) {
	get := func(name string) (string, bool) {
		val, ok := lookup(EnvPrefix + name)
		if !ok || val == "" {
			return "", false
		}
		return val, true
	}
	setString := func(name string, dst *string) {
		if val, ok := get(name); ok {
			*dst = val
		}
	}
	setBool := func(name string, dst *bool) {
		if val, ok := get(name); ok {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = b
			}
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if val, ok := get(name); ok {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = d
			}
		}
	}

	// Server overrides
	if val, ok := get("SERVER_LISTEN_ADDRESS"); ok {
		cfg.Server.ListenAddress = val
	} else if port, ok := lookup("PORT"); ok && port != "" {
		cfg.Server.ListenAddress = net.JoinHostPort("", port)
	}
	setDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	setDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	if val, ok := get("SERVER_MAX_HEADER_BYTES"); ok {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.MaxHeaderBytes = i
		}
	}
	setBool("SERVER_TRUST_PROXY", &cfg.Server.TrustProxy)
	setBool("SERVER_CORS_ENABLED", &cfg.Server.CORS.Enabled)
	if val, ok := get("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		cfg.Server.CORS.AllowedOrigins = splitList(val)
	}

	// Upstream overrides
	setString("UPSTREAM_URL", &cfg.Upstream.URL)
	setDuration("UPSTREAM_FLUSH_INTERVAL", &cfg.Upstream.FlushInterval)
	setDuration("UPSTREAM_DIAL_TIMEOUT", &cfg.Upstream.DialTimeout)
	setBool("UPSTREAM_PRESERVE_HOST", &cfg.Upstream.PreserveHost)

	// Recorder overrides
	setBool("RECORDER_ENABLED", &cfg.Recorder.Enabled)
	setString("RECORDER_SINK", &cfg.Recorder.Sink)
	setBool("RECORDER_COLOR", &cfg.Recorder.Color)
	setBool("RECORDER_CAPTURE_REQUEST_BODY", &cfg.Recorder.CaptureRequestBody)
	setBool("RECORDER_CAPTURE_RESPONSE_BODY", &cfg.Recorder.CaptureResponseBody)
	if val, ok := get("RECORDER_MAX_BODY_BYTES"); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Recorder.MaxBodyBytes = i
		}
	}
	setBool("RECORDER_REDACT_HEADERS", &cfg.Recorder.RedactHeaders)
	setBool("RECORDER_REDACT_BODIES", &cfg.Recorder.RedactBodies)
	if val, ok := get("RECORDER_SKIP_PATHS"); ok {
		cfg.Recorder.SkipPaths = splitList(val)
	}
	setBool("RECORDER_TRACE_CONTEXT", &cfg.Recorder.TraceContext)
	setString("RECORDER_SUMMARY_SCHEDULE", &cfg.Recorder.SummarySchedule)

	// Telemetry overrides
	setString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	setBool("TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	setBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	setString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	setBool("TELEMETRY_HEALTH_ENABLED", &cfg.Telemetry.Health.Enabled)

	// Reload overrides
	setBool("RELOAD_ENABLED", &cfg.Reload.Enabled)
}

// splitList splits a comma-separated environment value.
func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
