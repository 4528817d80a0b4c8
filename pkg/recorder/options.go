package recorder

import (
	"mercator-hq/loupe/pkg/config"
)

// Options controls what the recorder captures. Options can be replaced at
// runtime with (*Recorder).Configure; requests in flight keep the options
// they started with.
type Options struct {
	// Enabled turns recording on. A disabled recorder passes requests
	// straight through.
	Enabled bool

	// CaptureRequestBody reads and records request bodies.
	CaptureRequestBody bool

	// CaptureResponseBody records the first non-empty response payload.
	CaptureResponseBody bool

	// MaxBodyBytes bounds the bytes of each body kept in a record.
	MaxBodyBytes int64

	// RedactHeaders masks sensitive header and cookie values.
	RedactHeaders bool

	// RedactBodies applies PII patterns to rendered bodies.
	RedactBodies bool

	// SkipPaths lists exact request paths that are not recorded.
	SkipPaths []string

	// TraceContext extracts W3C trace IDs from traceparent headers.
	TraceContext bool

	// TrustProxy takes the protocol and client address from
	// X-Forwarded-Proto and X-Forwarded-For.
	TrustProxy bool
}

// DefaultOptions returns the options used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		Enabled:             config.DefaultRecorderEnabled,
		CaptureRequestBody:  config.DefaultCaptureRequestBody,
		CaptureResponseBody: config.DefaultCaptureResponseBody,
		MaxBodyBytes:        config.DefaultMaxBodyBytes,
		TraceContext:        config.DefaultRecorderTraceContext,
	}
}

// OptionsFromConfig builds Options from the recorder section and the
// server's proxy trust setting.
func OptionsFromConfig(cfg *config.RecorderConfig, trustProxy bool) Options {
	return Options{
		Enabled:             cfg.Enabled,
		CaptureRequestBody:  cfg.CaptureRequestBody,
		CaptureResponseBody: cfg.CaptureResponseBody,
		MaxBodyBytes:        cfg.MaxBodyBytes,
		RedactHeaders:       cfg.RedactHeaders,
		RedactBodies:        cfg.RedactBodies,
		SkipPaths:           append([]string(nil), cfg.SkipPaths...),
		TraceContext:        cfg.TraceContext,
		TrustProxy:          trustProxy,
	}
}

// maxBody returns the effective body limit.
func (o *Options) maxBody() int64 {
	if o.MaxBodyBytes <= 0 {
		return config.DefaultMaxBodyBytes
	}
	return o.MaxBodyBytes
}

// skip reports whether path is excluded from recording.
func (o *Options) skip(path string) bool {
	for _, p := range o.SkipPaths {
		if p == path {
			return true
		}
	}
	return false
}
