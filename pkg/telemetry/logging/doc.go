// Package logging provides structured logging with optional PII redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON, text, and console formats
//   - Optional PII redaction of log fields (API keys, emails, bearer tokens)
//   - Context-aware logging with request, trace and span IDs
//   - A runtime-adjustable level for configuration hot reload
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    return err
//	}
//
//	ctx = logging.WithRequestID(ctx, "9f1c2b7e4a0d5c3f")
//	logger.InfoContext(ctx, "request received", "method", "GET")
//
// # Redaction
//
// When RedactPII is enabled, values whose key names look sensitive
// (authorization, cookie, token, password) are masked and string values are
// scanned for known secret patterns:
//
//   - API keys: sk-abc123xyz → sk-***
//   - Bearer tokens: Bearer eyJhbGci... → Bearer ***
//   - Emails: user@example.com → user@example.com_redacted
//
// The recorder uses the same Redactor to mask header and cookie values when
// recorder.redact_headers is set.
package logging
