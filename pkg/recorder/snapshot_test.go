package recorder

import (
	"bytes"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/loupe/pkg/telemetry/logging"
)

// fakeObserver counts observer calls.
type fakeObserver struct {
	mu          sync.Mutex
	completions []string
	errors      []string
	fallbacks   []string
}

func (o *fakeObserver) ObserveCompletion(method, route string, status int, _ time.Duration, _, _ int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completions = append(o.completions, method+" "+route+" "+http.StatusText(status))
}

func (o *fakeObserver) ObserveError(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, kind)
}

func (o *fakeObserver) ObserveFallback(field string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks = append(o.fallbacks, field)
}

func (o *fakeObserver) fallbackCount(field string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, f := range o.fallbacks {
		if f == field {
			n++
		}
	}
	return n
}

func newSnapshotter(opts Options) (*snapshotter, *fakeObserver) {
	obs := &fakeObserver{}
	return &snapshotter{opts: &opts, redactor: logging.NewRedactor(nil), observer: obs}, obs
}

func TestSnapshot_RequestFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/search?q=go&tag=a&tag=b", nil)
	req.Host = "api.example.com"
	req.RemoteAddr = "192.0.2.10:54321"
	req.Header.Set("User-Agent", "curl/8.0")
	req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})

	s, _ := newSnapshotter(DefaultOptions())
	snap := s.snapshot(req)

	checks := map[string][2]string{
		"Method":      {snap.Method, "GET"},
		"URL":         {snap.URL, "/search?q=go&tag=a&tag=b"},
		"OriginalURL": {snap.OriginalURL, "/search?q=go&tag=a&tag=b"},
		"Path":        {snap.Path, "/search"},
		"Protocol":    {snap.Protocol, "http"},
		"Host":        {snap.Host, "api.example.com"},
		"ClientIP":    {snap.ClientIP, "192.0.2.10"},
		"UserAgent":   {snap.UserAgent, "curl/8.0"},
		"Body":        {snap.Body, NoRequestBody},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s = %q, want %q", name, c[0], c[1])
		}
	}

	if got := snap.Query["tag"]; len(got) != 2 || got[1] != "b" {
		t.Errorf("Query[tag] = %v", got)
	}
	if snap.Cookies["session"] != "abc" {
		t.Errorf("Cookies = %v", snap.Cookies)
	}
	if snap.Params == nil {
		t.Error("Params should be an empty map, not nil")
	}
}

func TestSnapshot_Protocol(t *testing.T) {
	tests := []struct {
		name       string
		tls        bool
		forwarded  string
		trustProxy bool
		want       string
	}{
		{name: "plain", want: "http"},
		{name: "tls", tls: true, want: "https"},
		{name: "forwarded ignored", forwarded: "https", want: "http"},
		{name: "forwarded trusted", forwarded: "HTTPS, http", trustProxy: true, want: "https"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-Proto", tt.forwarded)
			}

			opts := DefaultOptions()
			opts.TrustProxy = tt.trustProxy
			s, _ := newSnapshotter(opts)

			if got := s.snapshot(req).Protocol; got != tt.want {
				t.Errorf("Protocol = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshot_ClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	s, _ := newSnapshotter(DefaultOptions())
	if got := s.snapshot(req).ClientIP; got != "10.0.0.1" {
		t.Errorf("untrusted ClientIP = %q", got)
	}

	opts := DefaultOptions()
	opts.TrustProxy = true
	s, _ = newSnapshotter(opts)
	if got := s.snapshot(req).ClientIP; got != "203.0.113.5" {
		t.Errorf("trusted ClientIP = %q", got)
	}

	// Address already rewritten by a real-IP middleware.
	req.RemoteAddr = "198.51.100.7"
	req.Header.Del("X-Forwarded-For")
	if got := s.snapshot(req).ClientIP; got != "198.51.100.7" {
		t.Errorf("ClientIP without port = %q", got)
	}
}

func TestSnapshot_Bodies(t *testing.T) {
	tests := []struct {
		name         string
		contentType  string
		body         []byte
		wantParsed   any
		wantBody     string
		wantRaw      string
		wantFallback bool
	}{
		{
			name:        "json",
			contentType: "application/json",
			body:        []byte(`{"a":1}`),
			wantParsed:  map[string]any{"a": float64(1)},
			wantBody:    "{\n  \"a\": 1\n}",
			wantRaw:     `{"a":1}`,
		},
		{
			name:        "vendor json",
			contentType: "application/vnd.api+json; charset=utf-8",
			body:        []byte(`[true]`),
			wantParsed:  []any{true},
			wantBody:    "[true]",
			wantRaw:     "[true]",
		},
		{
			name:         "invalid json",
			contentType:  "application/json",
			body:         []byte(`{"a":`),
			wantParsed:   `{"a":`,
			wantBody:     `{"a":`,
			wantRaw:      `{"a":`,
			wantFallback: true,
		},
		{
			name:        "form",
			contentType: "application/x-www-form-urlencoded",
			body:        []byte("name=ada&lang=go"),
			wantParsed:  url.Values{"name": {"ada"}, "lang": {"go"}},
			wantBody:    "{\n  \"lang\": [\"go\"],\n  \"name\": [\"ada\"]\n}",
			wantRaw:     "name=ada&lang=go",
		},
		{
			name:        "text",
			contentType: "text/plain",
			body:        []byte("hello"),
			wantParsed:  "hello",
			wantBody:    "hello",
			wantRaw:     "hello",
		},
		{
			name:        "binary",
			contentType: "application/octet-stream",
			body:        []byte{0x00, 0xff, 0x10, 0x80},
			wantBody:    "<binary body, 4 B>",
			wantRaw:     "<binary body, 4 B>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			s, obs := newSnapshotter(DefaultOptions())
			snap := s.snapshot(req)

			if snap.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", snap.Body, tt.wantBody)
			}
			if snap.RawBody != tt.wantRaw {
				t.Errorf("RawBody = %q, want %q", snap.RawBody, tt.wantRaw)
			}
			if !equalJSONish(snap.ParsedBody, tt.wantParsed) {
				t.Errorf("ParsedBody = %#v, want %#v", snap.ParsedBody, tt.wantParsed)
			}
			if got := obs.fallbackCount("request_body") > 0; got != tt.wantFallback {
				t.Errorf("fallback reported = %v, want %v", got, tt.wantFallback)
			}

			// The handler still reads the full body.
			rest, err := io.ReadAll(req.Body)
			if err != nil {
				t.Fatalf("reading restored body: %v", err)
			}
			if !bytes.Equal(rest, tt.body) {
				t.Errorf("restored body = %q, want %q", rest, tt.body)
			}
		})
	}
}

func TestSnapshot_TruncatedBody(t *testing.T) {
	body := strings.Repeat("x", 20)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain")

	opts := DefaultOptions()
	opts.MaxBodyBytes = 8
	s, _ := newSnapshotter(opts)
	snap := s.snapshot(req)

	if !snap.BodyTruncated || snap.BodyBytes != 8 {
		t.Errorf("BodyTruncated = %v, BodyBytes = %d", snap.BodyTruncated, snap.BodyBytes)
	}
	if want := "xxxxxxxx ... (truncated, 20 B total)"; snap.Body != want {
		t.Errorf("Body = %q, want %q", snap.Body, want)
	}

	rest, _ := io.ReadAll(req.Body)
	if string(rest) != body {
		t.Errorf("restored body has %d bytes, want %d", len(rest), len(body))
	}
}

func TestSnapshot_CaptureDisabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("data"))

	opts := DefaultOptions()
	opts.CaptureRequestBody = false
	s, _ := newSnapshotter(opts)
	snap := s.snapshot(req)

	if snap.Body != NoRequestBody || snap.RawBody != "" {
		t.Errorf("body captured while disabled: %q / %q", snap.Body, snap.RawBody)
	}
	rest, _ := io.ReadAll(req.Body)
	if string(rest) != "data" {
		t.Errorf("body = %q", rest)
	}
}

func TestSnapshot_Redaction(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"ada@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer abc.def")
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})

	opts := DefaultOptions()
	opts.RedactHeaders = true
	opts.RedactBodies = true
	s, _ := newSnapshotter(opts)
	snap := s.snapshot(req)

	if got := snap.Headers.Get("Authorization"); got != logging.Masked {
		t.Errorf("Authorization = %q", got)
	}
	if got := snap.Headers.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
	if got := snap.Cookies["theme"]; got != logging.Masked {
		t.Errorf("cookie = %q", got)
	}
	if strings.Contains(snap.Body, "ada@example.com\"") || strings.Contains(snap.RawBody, "ada@example.com\"") {
		t.Errorf("email not redacted: %q / %q", snap.Body, snap.RawBody)
	}
	if req.Header.Get("Authorization") != "Bearer abc.def" {
		t.Error("redaction modified the request")
	}
}

func TestSnapshot_TraceContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	s, _ := newSnapshotter(DefaultOptions())
	snap := s.snapshot(req)
	if snap.TraceID != "4bf92f3577b34da6a3ce929d0e0e4736" || snap.SpanID != "00f067aa0ba902b7" {
		t.Errorf("trace IDs = %q/%q", snap.TraceID, snap.SpanID)
	}

	opts := DefaultOptions()
	opts.TraceContext = false
	s, _ = newSnapshotter(opts)
	if snap := s.snapshot(req); snap.TraceID != "" {
		t.Errorf("trace ID extracted while disabled: %q", snap.TraceID)
	}
}

func TestSnapshot_NonUTF8Header(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Raw", "ok\xc3\x28")

	s, obs := newSnapshotter(DefaultOptions())
	snap := s.snapshot(req)

	if got := snap.Headers.Get("X-Raw"); got != `"ok\xc3("` {
		t.Errorf("X-Raw = %q", got)
	}
	if obs.fallbackCount("request_header") != 1 {
		t.Errorf("fallbacks = %v", obs.fallbacks)
	}
}

// equalJSONish compares decoded bodies by their rendering.
func equalJSONish(a, b any) bool {
	return Render(a) == Render(b)
}
