package recorder

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mercator-hq/loupe/pkg/respond"
)

func TestResponseWriter_Transparent(t *testing.T) {
	tests := []struct {
		name     string
		emit     func(w http.ResponseWriter) error
		wantPath Path
		wantBody string
	}{
		{
			name:     "send",
			emit:     func(w http.ResponseWriter) error { return respond.Send(w, http.StatusCreated, []byte("hello")) },
			wantPath: PathSend,
			wantBody: "hello",
		},
		{
			name:     "json",
			emit:     func(w http.ResponseWriter) error { return respond.JSON(w, http.StatusOK, map[string]int{"a": 1}) },
			wantPath: PathJSON,
			wantBody: "{\n  \"a\": 1\n}",
		},
		{
			name:     "end with chunk",
			emit:     func(w http.ResponseWriter) error { return respond.End(w, http.StatusAccepted, []byte("bye")) },
			wantPath: PathEnd,
			wantBody: "bye",
		},
		{
			name: "direct writes",
			emit: func(w http.ResponseWriter) error {
				w.Header().Set("Content-Type", "text/plain")
				if _, err := w.Write([]byte("part1 ")); err != nil {
					return err
				}
				_, err := w.Write([]byte("part2"))
				return err
			},
			wantPath: PathEnd,
			wantBody: "part1 ",
		},
		{
			name: "send then end",
			emit: func(w http.ResponseWriter) error {
				if err := respond.Send(w, 0, []byte(`{"first":true}`)); err != nil {
					return err
				}
				return respond.End(w, 0, []byte("tail"))
			},
			wantPath: PathSend,
			wantBody: "{\n  \"first\": true\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bare := httptest.NewRecorder()
			bareErr := tt.emit(bare)

			wrapped := httptest.NewRecorder()
			rc := &RequestContext{}
			opts := DefaultOptions()
			rw := newResponseWriter(wrapped, rc, &opts)
			wrappedErr := tt.emit(rw)

			if (bareErr == nil) != (wrappedErr == nil) {
				t.Fatalf("errors differ: bare %v, wrapped %v", bareErr, wrappedErr)
			}
			if bare.Code != wrapped.Code {
				t.Errorf("status: bare %d, wrapped %d", bare.Code, wrapped.Code)
			}
			if bare.Body.String() != wrapped.Body.String() {
				t.Errorf("body: bare %q, wrapped %q", bare.Body.String(), wrapped.Body.String())
			}
			if bare.Flushed != wrapped.Flushed {
				t.Errorf("flushed: bare %v, wrapped %v", bare.Flushed, wrapped.Flushed)
			}
			for name := range bare.Header() {
				if bare.Header().Get(name) != wrapped.Header().Get(name) {
					t.Errorf("header %s: bare %q, wrapped %q", name, bare.Header().Get(name), wrapped.Header().Get(name))
				}
			}
			if rw.statusCode() != bare.Code {
				t.Errorf("tracked status %d, want %d", rw.statusCode(), bare.Code)
			}
			if rw.bytes != int64(bare.Body.Len()) {
				t.Errorf("tracked bytes %d, want %d", rw.bytes, bare.Body.Len())
			}

			payload, ok := rc.body.Get()
			if !ok {
				t.Fatal("nothing captured")
			}
			if payload.Path != tt.wantPath {
				t.Errorf("captured path %q, want %q", payload.Path, tt.wantPath)
			}
			if got, _ := renderPayload(payload, ok); got != tt.wantBody {
				t.Errorf("captured body %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestResponseWriter_SendReturnValue(t *testing.T) {
	rc := &RequestContext{}
	opts := DefaultOptions()
	rw := newResponseWriter(httptest.NewRecorder(), rc, &opts)

	n, err := rw.Send([]byte("12345"))
	if n != 5 || err != nil {
		t.Errorf("Send() = (%d, %v), want (5, nil)", n, err)
	}
}

func TestResponseWriter_CaptureLimit(t *testing.T) {
	rc := &RequestContext{}
	opts := DefaultOptions()
	opts.MaxBodyBytes = 4
	rw := newResponseWriter(httptest.NewRecorder(), rc, &opts)

	buf := []byte("abcdefgh")
	_ = respond.Send(rw, 0, buf)
	copy(buf, "XXXXXXXX")

	payload, _ := rc.body.Get()
	if string(payload.Data) != "abcd" {
		t.Errorf("captured %q, want a private copy of the first 4 bytes", payload.Data)
	}
	if !payload.Truncated || payload.Size != 8 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestResponseWriter_Flush(t *testing.T) {
	rc := &RequestContext{}
	opts := DefaultOptions()
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec, rc, &opts)

	if err := http.NewResponseController(rw).Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !rec.Flushed {
		t.Error("flush did not reach the underlying writer")
	}
	if rw.statusCode() != http.StatusOK {
		t.Errorf("status after flush = %d", rw.statusCode())
	}
}

func TestResponseWriter_HijackUnsupported(t *testing.T) {
	rc := &RequestContext{}
	opts := DefaultOptions()
	rw := newResponseWriter(httptest.NewRecorder(), rc, &opts)

	if _, _, err := rw.Hijack(); err == nil {
		t.Fatal("Hijack() on a recorder writer should fail")
	}
	if rw.wroteHeader {
		t.Error("failed hijack should not set a status")
	}
}

func TestResponseWriter_JSONCapturesEncodedBytes(t *testing.T) {
	rc := &RequestContext{}
	opts := DefaultOptions()
	wrapped := httptest.NewRecorder()
	rw := newResponseWriter(wrapped, rc, &opts)

	body := map[string]any{"ok": true}
	if err := respond.JSON(rw, http.StatusOK, body); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	body["ok"] = false
	body["added"] = "later"

	payload, ok := rc.body.Get()
	if !ok {
		t.Fatal("nothing captured")
	}
	if string(payload.Data) != `{"ok":true}` {
		t.Errorf("captured %q, want the bytes that were sent", payload.Data)
	}
	if wrapped.Body.String() != `{"ok":true}` {
		t.Errorf("sent %q", wrapped.Body.String())
	}
	if got := wrapped.Header().Get("Content-Type"); got != respond.ContentTypeJSON {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestResponseWriter_JSONCaptureLimit(t *testing.T) {
	rc := &RequestContext{}
	opts := DefaultOptions()
	opts.MaxBodyBytes = 16
	wrapped := httptest.NewRecorder()
	rw := newResponseWriter(wrapped, rc, &opts)

	items := make([]int, 100)
	if err := respond.AsEmitter(rw).JSON(items); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	payload, _ := rc.body.Get()
	if len(payload.Data) != 16 || !payload.Truncated {
		t.Errorf("captured %d bytes, truncated %v", len(payload.Data), payload.Truncated)
	}
	if payload.Size != wrapped.Body.Len() {
		t.Errorf("size %d, sent %d", payload.Size, wrapped.Body.Len())
	}
}

func TestResponseWriter_JSONEncodeFailure(t *testing.T) {
	rc := &RequestContext{}
	opts := DefaultOptions()
	wrapped := httptest.NewRecorder()
	rw := newResponseWriter(wrapped, rc, &opts)

	if err := rw.JSON(make(chan int)); err == nil {
		t.Fatal("expected an encode error")
	}
	if wrapped.Body.Len() != 0 {
		t.Errorf("sent %q after a failed encode", wrapped.Body.String())
	}

	payload, ok := rc.body.Get()
	got, rendered := renderPayload(payload, ok)
	if rendered || !strings.HasPrefix(got, "<unrenderable chan int: ") {
		t.Errorf("renderPayload() = (%q, %v)", got, rendered)
	}
}

// readerFromRecorder is a ResponseRecorder that also implements
// io.ReaderFrom, like the server's own response writer.
type readerFromRecorder struct {
	*httptest.ResponseRecorder
	used bool
}

func (r *readerFromRecorder) ReadFrom(src io.Reader) (int64, error) {
	r.used = true
	return io.Copy(r.ResponseRecorder, src)
}

func TestResponseWriter_ReadFrom(t *testing.T) {
	const content = "streamed from a file"

	tests := []struct {
		name         string
		capture      bool
		preload      bool
		wantCaptured string
		wantDelegate bool
	}{
		{
			name:         "first chunk is captured",
			capture:      true,
			wantCaptured: content,
		},
		{
			name:         "capture disabled delegates",
			capture:      false,
			wantDelegate: true,
		},
		{
			name:         "capture already filled delegates",
			capture:      true,
			preload:      true,
			wantCaptured: "earlier",
			wantDelegate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := &readerFromRecorder{ResponseRecorder: httptest.NewRecorder()}
			rc := &RequestContext{}
			opts := DefaultOptions()
			opts.CaptureResponseBody = tt.capture
			rw := newResponseWriter(orig, rc, &opts)
			if tt.preload {
				rc.body.SetIfEmpty(Payload{Path: PathSend, Data: []byte("earlier"), Size: 7})
			}

			// LimitReader hides strings.Reader's WriteTo so io.Copy uses ReadFrom.
			n, err := io.Copy(rw, io.LimitReader(strings.NewReader(content), 1<<20))
			if err != nil || n != int64(len(content)) {
				t.Fatalf("io.Copy() = (%d, %v)", n, err)
			}
			if orig.Body.String() != content {
				t.Errorf("sent %q", orig.Body.String())
			}
			if rw.bytes != n {
				t.Errorf("tracked bytes %d, want %d", rw.bytes, n)
			}
			if rw.statusCode() != http.StatusOK {
				t.Errorf("tracked status %d", rw.statusCode())
			}
			if orig.used != tt.wantDelegate {
				t.Errorf("original ReadFrom used = %v, want %v", orig.used, tt.wantDelegate)
			}

			payload, _ := rc.body.Get()
			if string(payload.Data) != tt.wantCaptured {
				t.Errorf("captured %q, want %q", payload.Data, tt.wantCaptured)
			}
		})
	}
}
