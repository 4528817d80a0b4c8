package recorder

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"mercator-hq/loupe/pkg/respond"
)

// tracker wraps the original http.ResponseWriter to record the status
// code, the number of body bytes written and the first write error.
type tracker struct {
	http.ResponseWriter

	status      int
	wroteHeader bool
	bytes       int64
	err         error
}

// WriteHeader records the first final status code and forwards every call.
func (t *tracker) WriteHeader(code int) {
	if !t.wroteHeader && code >= http.StatusOK {
		t.status = code
		t.wroteHeader = true
	}
	t.ResponseWriter.WriteHeader(code)
}

// Write forwards b and records the outcome.
func (t *tracker) Write(b []byte) (int, error) {
	if !t.wroteHeader {
		t.status = http.StatusOK
		t.wroteHeader = true
	}
	n, err := t.ResponseWriter.Write(b)
	t.bytes += int64(n)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}

// Flush forwards to the original writer if it can flush.
func (t *tracker) Flush() {
	if !t.wroteHeader {
		t.status = http.StatusOK
		t.wroteHeader = true
	}
	err := http.NewResponseController(t.ResponseWriter).Flush()
	if err != nil && !errors.Is(err, http.ErrNotSupported) && t.err == nil {
		t.err = err
	}
}

// ReadFrom forwards to the original writer's io.ReaderFrom when it has
// one, which keeps sendfile available to io.Copy.
func (t *tracker) ReadFrom(src io.Reader) (int64, error) {
	rf, ok := t.ResponseWriter.(io.ReaderFrom)
	if !ok {
		return io.Copy(writerOnly{t}, src)
	}
	if !t.wroteHeader {
		t.status = http.StatusOK
		t.wroteHeader = true
	}
	n, err := rf.ReadFrom(src)
	t.bytes += n
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}

// writerOnly hides any ReadFrom method so io.Copy falls back to Write.
type writerOnly struct {
	io.Writer
}

// statusCode returns the status sent to the client. A handler that wrote
// nothing gets the implicit 200.
func (t *tracker) statusCode() int {
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}

// responseWriter is the per-request decorator handed to downstream
// handlers. Each emission path records its payload into the request's
// capture cell and then delegates, unmodified, to the base Emitter.
type responseWriter struct {
	*tracker

	base    respond.Emitter
	rc      *RequestContext
	capture bool
	limit   int64
}

var _ respond.Emitter = (*responseWriter)(nil)

func newResponseWriter(w http.ResponseWriter, rc *RequestContext, opts *Options) *responseWriter {
	t := &tracker{ResponseWriter: w}
	return &responseWriter{
		tracker: t,
		base:    respond.Writer{ResponseWriter: t},
		rc:      rc,
		capture: opts.CaptureResponseBody,
		limit:   opts.maxBody(),
	}
}

// Send records body and delegates to the base Send.
func (w *responseWriter) Send(body []byte) (int, error) {
	w.captureBytes(PathSend, body)
	return w.base.Send(body)
}

// JSON encodes v once, records the encoded bytes and sends exactly those
// bytes. Later mutation of v cannot change the record. A value that fails
// to encode is recorded as a placeholder and nothing is sent.
func (w *responseWriter) JSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		if w.capture && v != nil && !w.rc.body.Loaded() {
			w.rc.body.SetIfEmpty(Payload{Path: PathJSON, Failure: unrenderable(v, err)})
		}
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", respond.ContentTypeJSON)
	}
	if v != nil {
		w.captureBytes(PathJSON, data)
	}
	_, err = w.base.Send(data)
	return err
}

// End records chunk and delegates to the base End.
func (w *responseWriter) End(chunk []byte) error {
	w.captureBytes(PathEnd, chunk)
	return w.base.End(chunk)
}

// Write is the chunk path used by handlers that write directly.
func (w *responseWriter) Write(b []byte) (int, error) {
	w.captureBytes(PathEnd, b)
	return w.tracker.Write(b)
}

// ReadFrom copies src to the response. While the capture cell is empty
// the copy goes through Write so the first chunk is recorded; afterwards
// it is handed to the original writer's io.ReaderFrom.
func (w *responseWriter) ReadFrom(src io.Reader) (int64, error) {
	if w.capture && !w.rc.body.Loaded() {
		return io.Copy(writerOnly{w}, src)
	}
	return w.tracker.ReadFrom(src)
}

// Hijack hands the connection to the handler. The response is then
// reported with status 101.
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := http.NewResponseController(w.tracker.ResponseWriter).Hijack()
	if err == nil && !w.wroteHeader {
		w.status = http.StatusSwitchingProtocols
		w.wroteHeader = true
	}
	return conn, rw, err
}

// Unwrap returns the original writer for http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.tracker.ResponseWriter
}

// captureBytes copies up to limit bytes of b into the capture cell if it
// is still empty. b is copied because callers may reuse their buffers.
func (w *responseWriter) captureBytes(path Path, b []byte) {
	if !w.capture || len(b) == 0 || w.rc.body.Loaded() {
		return
	}

	n := len(b)
	truncated := int64(n) > w.limit
	if truncated {
		n = int(w.limit)
	}

	w.rc.body.SetIfEmpty(Payload{
		Path:      path,
		Data:      append([]byte(nil), b[:n]...),
		Size:      len(b),
		Truncated: truncated,
	})
}
