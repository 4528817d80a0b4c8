package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/loupe/pkg/respond"
	"mercator-hq/loupe/pkg/telemetry/logging"
)

// RecoveryMiddleware recovers from panics in HTTP handlers and returns a 500
// Internal Server Error response as a JSON error body. It logs the panic
// with stack trace but does not expose internal details to clients.
//
// http.ErrAbortHandler is re-raised so that the server aborts the response
// and outer middleware sees the client abort.
//
// Example usage:
//
//	handler = RecoveryMiddleware(handler)
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", err,
				"request_id", logging.GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			_ = respond.Error(w, http.StatusInternalServerError, respond.ErrorTypeServerError,
				"An internal error occurred. Please try again later.")
		}()

		next.ServeHTTP(w, r)
	})
}
