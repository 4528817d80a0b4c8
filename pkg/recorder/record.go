package recorder

import (
	"net/http"
	"time"
)

// Kind identifies the type of a Record.
type Kind string

const (
	// KindRequest is emitted when a request arrives.
	KindRequest Kind = "request"

	// KindResponse is emitted once the handler completed the response.
	KindResponse Kind = "response"

	// KindError is emitted instead of KindResponse when the transport
	// failed or the handler panicked.
	KindError Kind = "error"
)

// ErrorKind classifies transport-level failures.
type ErrorKind string

const (
	// ErrorKindWrite means writing the response to the connection failed.
	ErrorKindWrite ErrorKind = "write"

	// ErrorKindClientAbort means the client went away before the handler
	// finished.
	ErrorKindClientAbort ErrorKind = "client_abort"

	// ErrorKindPanic means the handler panicked and nothing below the
	// recorder recovered it.
	ErrorKindPanic ErrorKind = "panic"
)

// Path names the emission path a response payload was captured from.
type Path string

const (
	PathSend Path = "send"
	PathJSON Path = "json"
	PathEnd  Path = "end"
)

// Record is one entry written to a Sink. Every request produces a
// KindRequest record followed by exactly one KindResponse or KindError
// record, all carrying the same CorrelationID.
type Record struct {
	Kind          Kind
	CorrelationID string
	Time          time.Time

	// Request is shared between the records of one request and must not
	// be modified by sinks.
	Request *RequestSnapshot

	// Response is set on KindResponse records.
	Response *ResponseSnapshot

	// Duration is the time from arrival to completion or failure.
	Duration time.Duration

	// Error is set on KindError records.
	Error *ErrorDetail
}

// ErrorDetail describes a transport failure.
type ErrorDetail struct {
	Kind    ErrorKind
	Message string
}

// RequestSnapshot holds the request-side fields of a record. Header, cookie
// and body fields are display-safe: redaction has been applied and values
// that cannot be shown verbatim have been replaced.
type RequestSnapshot struct {
	Method string

	// URL is the request URI as seen by the recorder, OriginalURL the one
	// received on the wire.
	URL         string
	OriginalURL string
	Path        string

	// BasePath is the mount prefix of the router that matched the request
	// and Route the full route pattern. Both are empty on the arrival record.
	BasePath string
	Route    string

	Protocol  string
	Proto     string
	Host      string
	ClientIP  string
	UserAgent string

	Query   map[string][]string
	Params  map[string]string
	Headers http.Header
	Cookies map[string]string

	// ParsedBody is the decoded JSON value, url.Values for forms, or the
	// raw string when the body could not be decoded. Nil without a body.
	ParsedBody any

	// Body is ParsedBody rendered for display, RawBody the captured bytes
	// rendered for display.
	Body    string
	RawBody string

	// BodyBytes counts the captured bytes, at most the configured limit.
	BodyBytes     int64
	BodyTruncated bool

	TraceID string
	SpanID  string
}

// ResponseSnapshot holds the response-side fields of a record.
type ResponseSnapshot struct {
	Status     int
	StatusText string
	Headers    http.Header

	// Bytes counts the body bytes written to the client.
	Bytes int64

	// Body is the first non-empty payload rendered for display, or NoBody.
	Body string

	// BodyPath is the emission path the payload came from.
	BodyPath Path
}

// Payload is a captured response body.
type Payload struct {
	Path Path

	// Data holds up to MaxBodyBytes of a byte payload.
	Data []byte

	// Failure describes a value passed to JSON that could not be encoded.
	Failure string

	// Size is the length of the payload given to the emission call.
	Size      int
	Truncated bool
}

// Observer receives recorder outcomes, typically to update metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveCompletion(method, route string, status int, duration time.Duration, requestBytes, responseBytes int64)
	ObserveError(kind string)
	ObserveFallback(field string)
}

type nopObserver struct{}

func (nopObserver) ObserveCompletion(string, string, int, time.Duration, int64, int64) {}
func (nopObserver) ObserveError(string)                                                {}
func (nopObserver) ObserveFallback(string)                                             {}
