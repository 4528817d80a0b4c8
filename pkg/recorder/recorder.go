package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"mercator-hq/loupe/pkg/telemetry/logging"
)

// Recorder is HTTP middleware that records every request and its response.
//
// A Recorder holds configuration and collaborators only. All capture state
// lives in a RequestContext created per request, so one Recorder serves
// any number of concurrent requests.
type Recorder struct {
	opts     atomic.Pointer[Options]
	sink     Sink
	observer Observer
	redactor *logging.Redactor
	logger   *slog.Logger
}

// New creates a Recorder writing to sink. A nil sink discards records.
func New(sink Sink, opts Options) *Recorder {
	if sink == nil {
		sink = SinkFunc(func(context.Context, slog.Level, *Record) {})
	}
	r := &Recorder{
		sink:     sink,
		observer: nopObserver{},
		redactor: logging.NewRedactor(nil),
		logger:   slog.Default().With("component", "recorder"),
	}
	r.opts.Store(&opts)
	return r
}

// WithObserver sets the observer notified of outcomes. It must be called
// before the middleware serves requests.
func (r *Recorder) WithObserver(o Observer) *Recorder {
	if o != nil {
		r.observer = o
	}
	return r
}

// WithRedactor sets the redactor used when header or body redaction is
// enabled. It must be called before the middleware serves requests.
func (r *Recorder) WithRedactor(rd *logging.Redactor) *Recorder {
	if rd != nil {
		r.redactor = rd
	}
	return r
}

// WithLogger sets the logger for problems inside the recorder itself.
func (r *Recorder) WithLogger(l *slog.Logger) *Recorder {
	if l != nil {
		r.logger = l.With("component", "recorder")
	}
	return r
}

// Options returns the current options.
func (r *Recorder) Options() Options {
	return *r.opts.Load()
}

// Configure replaces the options for requests that arrive afterwards.
func (r *Recorder) Configure(opts Options) {
	opts.SkipPaths = append([]string(nil), opts.SkipPaths...)
	r.opts.Store(&opts)
}

// Middleware returns next wrapped by the recorder. It must be installed
// ahead of the router so that every request is seen before dispatch.
//
// For each request the recorder emits a KindRequest record on arrival and
// exactly one terminal record: KindResponse when the handler returns, or
// KindError when writing to the client fails, the client goes away first,
// or the handler panics. A panic is recorded and then propagated.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		opts := r.opts.Load()
		if !opts.Enabled || opts.skip(req.URL.Path) {
			next.ServeHTTP(w, req)
			return
		}

		rc, req := r.begin(req, opts)
		rw := newResponseWriter(w, rc, opts)

		stop := context.AfterFunc(req.Context(), func() {
			r.abort(rc, req.Context())
		})

		defer func() {
			stop()
			if p := recover(); p != nil {
				kind := ErrorKindPanic
				if p == http.ErrAbortHandler {
					kind = ErrorKindClientAbort
				}
				r.fail(rc, kind, fmt.Errorf("panic: %v", p))
				panic(p)
			}
		}()

		next.ServeHTTP(rw, req)

		stop()
		r.finish(rc, rw, req, opts)
	})
}

// begin creates the RequestContext, snapshots the request and emits the
// arrival record. The returned request carries the context values that
// downstream handlers and sinks use.
func (r *Recorder) begin(req *http.Request, opts *Options) (*RequestContext, *http.Request) {
	rc := &RequestContext{
		CorrelationID: NewCorrelationID(),
		Start:         time.Now(),
	}

	s := &snapshotter{opts: opts, redactor: r.redactor, observer: r.observer}
	rc.Request = s.snapshot(req)

	ctx := logging.WithRequestID(req.Context(), rc.CorrelationID)
	if rc.Request.TraceID != "" {
		ctx = logging.WithTraceID(ctx, rc.Request.TraceID)
		ctx = logging.WithSpanID(ctx, rc.Request.SpanID)
	}
	ctx = context.WithValue(ctx, contextKey{}, rc)

	// chi resolves route parameters into an existing routing context
	// instead of allocating its own, which keeps them readable here after
	// the router returns.
	if chi.RouteContext(ctx) == nil {
		ctx = context.WithValue(ctx, chi.RouteCtxKey, chi.NewRouteContext())
	}
	rc.ctx = ctx

	r.emit(ctx, slog.LevelInfo, &Record{
		Kind:          KindRequest,
		CorrelationID: rc.CorrelationID,
		Time:          time.Now(),
		Request:       rc.Request,
	})

	return rc, req.WithContext(ctx)
}

// finish emits the completion record, or a write error record when the
// response could not be delivered.
func (r *Recorder) finish(rc *RequestContext, rw *responseWriter, req *http.Request, opts *Options) {
	if rw.err != nil {
		r.fail(rc, ErrorKindWrite, rw.err)
		return
	}
	// The abort callback runs on its own goroutine and may not have
	// claimed the request yet when the handler returns.
	if req.Context().Err() != nil {
		r.abort(rc, req.Context())
		return
	}
	if !rc.claim() {
		return
	}

	duration := time.Since(rc.Start)

	snap := *rc.Request
	snap.Params, snap.Route, snap.BasePath = routeInfo(req)

	var headerRedactor *logging.Redactor
	if opts.RedactHeaders {
		headerRedactor = r.redactor
	}
	headers, quoted := displayHeaders(rw.Header(), headerRedactor)
	if quoted > 0 {
		r.observer.ObserveFallback("response_header")
	}

	payload, captured := rc.body.Get()
	body, ok := renderPayload(payload, captured)
	if !ok {
		r.observer.ObserveFallback("response_body")
	}
	if opts.RedactBodies && captured {
		body = r.redactor.RedactString(body)
	}

	status := rw.statusCode()
	resp := &ResponseSnapshot{
		Status:     status,
		StatusText: http.StatusText(status),
		Headers:    headers,
		Bytes:      rw.bytes,
		Body:       body,
		BodyPath:   payload.Path,
	}

	r.emit(rc.ctx, levelForStatus(status), &Record{
		Kind:          KindResponse,
		CorrelationID: rc.CorrelationID,
		Time:          time.Now(),
		Request:       &snap,
		Response:      resp,
		Duration:      duration,
	})

	route := snap.Route
	if route == "" {
		route = "unmatched"
	}
	r.observer.ObserveCompletion(req.Method, route, status, duration, snap.BodyBytes, rw.bytes)
}

// fail emits an error record unless the request already has a terminal
// record.
func (r *Recorder) fail(rc *RequestContext, kind ErrorKind, err error) {
	if !rc.claim() {
		return
	}

	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	r.emit(rc.ctx, slog.LevelError, &Record{
		Kind:          KindError,
		CorrelationID: rc.CorrelationID,
		Time:          time.Now(),
		Request:       rc.Request,
		Duration:      time.Since(rc.Start),
		Error:         &ErrorDetail{Kind: kind, Message: msg},
	})
	r.observer.ObserveError(string(kind))
}

func (r *Recorder) abort(rc *RequestContext, ctx context.Context) {
	r.fail(rc, ErrorKindClientAbort, fmt.Errorf("client disconnected: %w", context.Cause(ctx)))
}

// emit hands rec to the sink. A panicking sink is logged and otherwise
// ignored.
func (r *Recorder) emit(ctx context.Context, level slog.Level, rec *Record) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("record sink panicked",
				"kind", string(rec.Kind),
				"request_id", rec.CorrelationID,
				"panic", fmt.Sprint(p),
			)
			r.observer.ObserveFallback("sink")
		}
	}()
	r.sink.Emit(ctx, level, rec)
}

// levelForStatus maps a status code to the record severity.
func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
