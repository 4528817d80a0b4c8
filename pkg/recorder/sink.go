package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"mercator-hq/loupe/pkg/config"
	"mercator-hq/loupe/pkg/telemetry/logging"
)

// Sink accepts records together with a severity. Emit is called from
// request goroutines and must be safe for concurrent use. Sinks must not
// retain or modify the record's snapshots beyond the call unless they copy
// them.
type Sink interface {
	Emit(ctx context.Context, level slog.Level, rec *Record)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, level slog.Level, rec *Record)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, level slog.Level, rec *Record) {
	f(ctx, level, rec)
}

// NewSink creates the sink named by config.RecorderConfig.Sink.
func NewSink(name string, color bool, w io.Writer, logger *logging.Logger) (Sink, error) {
	switch name {
	case config.SinkConsole, "":
		return NewConsoleSink(w, color), nil
	case config.SinkLog:
		if logger == nil {
			return nil, fmt.Errorf("log sink requires a logger")
		}
		return NewLogSink(logger), nil
	default:
		return nil, fmt.Errorf("unknown sink %q", name)
	}
}

// MultiSink emits every record to each of its sinks in order.
type MultiSink []Sink

// Emit forwards rec to all sinks.
func (m MultiSink) Emit(ctx context.Context, level slog.Level, rec *Record) {
	for _, s := range m {
		s.Emit(ctx, level, rec)
	}
}

// Entry is a record kept by MemorySink.
type Entry struct {
	Level  slog.Level
	Record *Record
}

// MemorySink keeps records in memory. It is meant for tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
	notify  chan struct{}
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{notify: make(chan struct{}, 1)}
}

// Emit stores rec.
func (m *MemorySink) Emit(_ context.Context, level slog.Level, rec *Record) {
	m.mu.Lock()
	m.entries = append(m.entries, Entry{Level: level, Record: rec})
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Entries returns a copy of the stored entries in emission order.
func (m *MemorySink) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Records returns the stored records in emission order.
func (m *MemorySink) Records() []*Record {
	entries := m.Entries()
	out := make([]*Record, len(entries))
	for i, e := range entries {
		out[i] = e.Record
	}
	return out
}

// ByCorrelationID returns the records of one request.
func (m *MemorySink) ByCorrelationID(id string) []*Record {
	var out []*Record
	for _, rec := range m.Records() {
		if rec.CorrelationID == id {
			out = append(out, rec)
		}
	}
	return out
}

// ByKind returns the records of the given kind.
func (m *MemorySink) ByKind(kind Kind) []*Record {
	var out []*Record
	for _, rec := range m.Records() {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the number of stored records.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// WaitFor blocks until at least n records are stored or ctx is done.
func (m *MemorySink) WaitFor(ctx context.Context, n int) error {
	for {
		if m.Len() >= n {
			return nil
		}
		select {
		case <-m.notify:
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d records, have %d: %w", n, m.Len(), ctx.Err())
		}
	}
}

// Reset discards all stored records.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}

// LogSink writes records as structured log entries.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "recorder")}
}

// Emit logs rec. The request, trace and span IDs are taken from ctx and
// fall back to the record's own IDs.
func (s *LogSink) Emit(ctx context.Context, level slog.Level, rec *Record) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logging.GetRequestID(ctx) == "" {
		ctx = logging.WithRequestID(ctx, rec.CorrelationID)
	}
	if req := rec.Request; req != nil && req.TraceID != "" && logging.GetTraceID(ctx) == "" {
		ctx = logging.WithSpanID(logging.WithTraceID(ctx, req.TraceID), req.SpanID)
	}

	switch rec.Kind {
	case KindRequest:
		s.logger.Log(ctx, level, "incoming request", requestAttrs(rec.Request, true))
	case KindResponse:
		s.logger.Log(ctx, level, "request completed",
			requestAttrs(rec.Request, false),
			responseAttrs(rec.Response),
			slog.Float64("duration_ms", durationMillis(rec.Duration)),
		)
	case KindError:
		detail := rec.Error
		if detail == nil {
			detail = &ErrorDetail{}
		}
		s.logger.Log(ctx, level, "request failed",
			requestAttrs(rec.Request, false),
			slog.String("error_kind", string(detail.Kind)),
			slog.String("error", detail.Message),
			slog.Float64("duration_ms", durationMillis(rec.Duration)),
		)
	}
}

func requestAttrs(req *RequestSnapshot, full bool) slog.Attr {
	if req == nil {
		return slog.Group("request")
	}

	attrs := []any{
		slog.String("method", req.Method),
		slog.String("url", req.URL),
		slog.String("path", req.Path),
	}
	if req.Route != "" {
		attrs = append(attrs,
			slog.String("route", req.Route),
			slog.String("base_path", req.BasePath),
			slog.Any("params", req.Params),
		)
	}
	if !full {
		return slog.Group("request", attrs...)
	}

	attrs = append(attrs,
		slog.String("original_url", req.OriginalURL),
		slog.String("protocol", req.Protocol),
		slog.String("proto", req.Proto),
		slog.String("host", req.Host),
		slog.String("client_ip", req.ClientIP),
		slog.String("user_agent", req.UserAgent),
		slog.Any("query", req.Query),
		slog.Any("headers", FlattenHeaders(req.Headers)),
		slog.Any("cookies", req.Cookies),
		slog.String("body", req.Body),
		slog.Int64("body_bytes", req.BodyBytes),
	)
	if req.BodyTruncated {
		attrs = append(attrs, slog.Bool("body_truncated", true))
	}
	if req.RawBody != "" {
		attrs = append(attrs, slog.String("raw_body", req.RawBody))
	}
	return slog.Group("request", attrs...)
}

func responseAttrs(resp *ResponseSnapshot) slog.Attr {
	if resp == nil {
		return slog.Group("response")
	}
	return slog.Group("response",
		slog.Int("status", resp.Status),
		slog.String("status_text", resp.StatusText),
		slog.Any("headers", FlattenHeaders(resp.Headers)),
		slog.Int64("bytes", resp.Bytes),
		slog.String("body", resp.Body),
	)
}
