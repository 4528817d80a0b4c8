// Package recorder provides the request/response recorder, HTTP middleware
// that writes a correlated record for every request-response cycle.
//
// # Recording Flow
//
//  1. A request arrives and receives a correlation ID
//  2. Method, URL, headers, cookies, query and body are captured; the body
//     is put back so handlers read it unchanged
//  3. A KindRequest record is emitted
//  4. The handler runs with a decorated http.ResponseWriter
//  5. When the handler returns, route parameters are read from the router
//     and a KindResponse record is emitted with status, headers, the
//     rendered response body and the duration
//
// If the client disconnects first, a write to the client fails, or the
// handler panics, a KindError record is emitted instead of KindResponse.
// Exactly one of the two is written per request.
//
// # Response Capture
//
// The decorated writer implements respond.Emitter. Send, JSON, End and
// plain Write each offer their payload to a write-once Cell before
// delegating to the base implementation, so the record holds the first
// non-empty payload whichever path the handler used:
//
//	_ = respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
//
// records {"ok": true} even though JSON finalizes through Send.
//
// # Sinks
//
// Records go to a Sink:
//   - ConsoleSink writes framed, human-readable blocks
//   - LogSink writes structured log entries through the logging package
//   - MemorySink keeps records for tests
//   - MultiSink fans out to several sinks
//
// # Basic Usage
//
//	rec := recorder.New(recorder.NewConsoleSink(os.Stdout, false), recorder.DefaultOptions())
//	handler := rec.Middleware(router)
//
// # Failure Handling
//
// Rendering never fails a request. Values that cannot be serialized are
// shown as a placeholder naming their type, invalid UTF-8 header values
// are quoted, and binary bodies are shown by size.
package recorder
