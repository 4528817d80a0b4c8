package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateRecorder(&cfg.Recorder)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if cfg.Reload.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "reload.debounce",
			Message: "debounce must be non-negative",
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}

	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "server.cors.max_age",
			Message: "max age must be non-negative",
		})
	}

	return errs
}

// validateUpstream validates reverse proxy configuration.
func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if cfg.URL != "" {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			errs = append(errs, FieldError{
				Field:   "upstream.url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, FieldError{
				Field:   "upstream.url",
				Message: fmt.Sprintf("unsupported scheme %q: must be 'http' or 'https'", u.Scheme),
			})
		} else if u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "upstream.url",
				Message: "URL must include a host",
			})
		}
	}

	if cfg.DialTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.dial_timeout",
			Message: "dial timeout must be positive",
		})
	}

	return errs
}

// validateRecorder validates recorder configuration.
func validateRecorder(cfg *RecorderConfig) []FieldError {
	var errs []FieldError

	switch cfg.Sink {
	case SinkConsole, SinkLog:
	default:
		errs = append(errs, FieldError{
			Field:   "recorder.sink",
			Message: fmt.Sprintf("invalid sink %q: must be '%s' or '%s'", cfg.Sink, SinkConsole, SinkLog),
		})
	}

	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "recorder.max_body_bytes",
			Message: "max body bytes must be non-negative",
		})
	}

	for i, p := range cfg.SkipPaths {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("recorder.skip_paths[%d]", i),
				Message: fmt.Sprintf("path %q must start with '/'", p),
			})
		}
	}

	if cfg.SummarySchedule != "" {
		if _, err := cron.ParseStandard(cfg.SummarySchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "recorder.summary_schedule",
				Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.SummarySchedule, err),
			})
		}
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if p.Name == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].name", i),
				Message: "pattern name is required",
			})
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/' when metrics are enabled",
		})
	}
	for i := 1; i < len(cfg.Metrics.RequestDurationBuckets); i++ {
		if cfg.Metrics.RequestDurationBuckets[i] <= cfg.Metrics.RequestDurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.request_duration_buckets",
				Message: "buckets must be strictly increasing",
			})
			break
		}
	}

	if cfg.Health.Enabled {
		paths := map[string]string{
			"telemetry.health.liveness_path":  cfg.Health.LivenessPath,
			"telemetry.health.readiness_path": cfg.Health.ReadinessPath,
			"telemetry.health.version_path":   cfg.Health.VersionPath,
		}
		for _, field := range []string{
			"telemetry.health.liveness_path",
			"telemetry.health.readiness_path",
			"telemetry.health.version_path",
		} {
			if !strings.HasPrefix(paths[field], "/") {
				errs = append(errs, FieldError{
					Field:   field,
					Message: "path must start with '/' when health checks are enabled",
				})
			}
		}
		if cfg.Health.CheckTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout must be positive",
			})
		}
	}

	return errs
}
