package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/loupe/pkg/config"
	"mercator-hq/loupe/pkg/recorder"
	"mercator-hq/loupe/pkg/telemetry/health"
	"mercator-hq/loupe/pkg/telemetry/metrics"
)

type testServer struct {
	*Server
	sink      *recorder.MemorySink
	collector *metrics.Collector
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.NewDefault()
	if mutate != nil {
		mutate(cfg)
	}

	sink := recorder.NewMemorySink()
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	rec := recorder.New(sink, recorder.OptionsFromConfig(&cfg.Recorder, cfg.Server.TrustProxy)).
		WithObserver(collector)

	srv, err := NewServer(cfg, Dependencies{
		Recorder: rec,
		Metrics:  collector,
		Health:   health.New(time.Second),
		Version:  health.VersionInfo{Version: "test"},
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return &testServer{Server: srv, sink: sink, collector: collector}
}

func (ts *testServer) do(method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) completion(t *testing.T) *recorder.Record {
	t.Helper()
	recs := ts.sink.ByKind(recorder.KindResponse)
	if len(recs) != 1 {
		t.Fatalf("got %d response records, want 1 (all records: %d)", len(recs), ts.sink.Len())
	}
	return recs[0]
}

func TestNewServer_Validation(t *testing.T) {
	cfg := config.NewDefault()
	if _, err := NewServer(cfg, Dependencies{}); err == nil {
		t.Error("expected error without recorder")
	}

	cfg.Upstream.URL = "not a url"
	rec := recorder.New(recorder.NewMemorySink(), recorder.DefaultOptions())
	if _, err := NewServer(cfg, Dependencies{Recorder: rec}); err == nil {
		t.Error("expected error for invalid upstream URL")
	}
}

func TestServer_EchoIsRecorded(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(http.MethodGet, "/greeting/ada", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	if n := ts.sink.Len(); n != 2 {
		t.Fatalf("got %d records, want 2", n)
	}
	rec := ts.completion(t)
	if rec.Response.Status != http.StatusOK || rec.Response.BodyPath != recorder.PathJSON {
		t.Errorf("response = %+v", rec.Response)
	}
	if rec.Request.Params["name"] != "ada" {
		t.Errorf("params = %v", rec.Request.Params)
	}
	if !strings.Contains(rec.Response.Body, "Hello, ada!") {
		t.Errorf("body = %q", rec.Response.Body)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, nil)

	if rr := ts.do(http.MethodGet, "/health", nil); rr.Code != http.StatusOK {
		t.Errorf("/health = %d", rr.Code)
	}
	if rr := ts.do(http.MethodGet, "/version", nil); !strings.Contains(rr.Body.String(), `"version":"test"`) {
		t.Errorf("/version = %s", rr.Body.String())
	}

	rr := ts.do(http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "loupe_recorder_requests_total") {
		t.Errorf("metrics missing request counter:\n%s", rr.Body.String())
	}

	totals, err := ts.collector.Totals()
	if err != nil {
		t.Fatal(err)
	}
	if totals.Requests < 2 {
		t.Errorf("Totals().Requests = %d, want >= 2", totals.Requests)
	}
}

func TestServer_TelemetryDisabled(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Telemetry.Health.Enabled = false
		cfg.Telemetry.Metrics.Enabled = false
	})

	for _, path := range []string{"/health", "/metrics"} {
		if rr := ts.do(http.MethodGet, path, nil); rr.Code != http.StatusNotFound {
			t.Errorf("%s = %d, want 404 from echo routes", path, rr.Code)
		}
	}
}

func TestServer_CORSPreflightIsRecorded(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(http.MethodOptions, "/echo", map[string]string{
		"Origin":                        "https://app.example",
		"Access-Control-Request-Method": "POST",
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Errorf("allow origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec := ts.completion(t); rec.Response.Status != http.StatusNoContent || rec.Response.Body != recorder.NoBody {
		t.Errorf("response = %+v", rec.Response)
	}
}

func TestServer_TrustProxy(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.TrustProxy = true
	})

	ts.do(http.MethodGet, "/", map[string]string{"X-Forwarded-For": "203.0.113.7"})

	if rec := ts.completion(t); rec.Request.ClientIP != "203.0.113.7" {
		t.Errorf("client IP = %q", rec.Request.ClientIP)
	}
}

func TestServer_Upstream(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"from":"backend","path":"`+r.URL.Path+`"}`)
	}))
	defer backend.Close()

	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Upstream.URL = backend.URL
	})

	rr := ts.do(http.MethodGet, "/v1/things", nil)
	if !strings.Contains(rr.Body.String(), `"path":"/v1/things"`) {
		t.Fatalf("body = %s", rr.Body.String())
	}

	rec := ts.completion(t)
	if rec.Response.BodyPath != recorder.PathEnd || !strings.Contains(rec.Response.Body, "backend") {
		t.Errorf("response = %+v", rec.Response)
	}

	if rr := ts.do(http.MethodGet, "/ready", nil); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"upstream"`) {
		t.Errorf("/ready = %d %s", rr.Code, rr.Body.String())
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ts := newTestServer(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Serve(ctx, ln) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + ln.Addr().String() + "/")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "Hello World!" {
		t.Errorf("body = %q", body)
	}
	if !ts.IsRunning() || ts.Addr() == nil {
		t.Error("server should be running with an address")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	if ts.IsRunning() {
		t.Error("server still running after shutdown")
	}
}
