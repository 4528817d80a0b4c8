package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEcho_Routes(t *testing.T) {
	h := Echo()

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		ctype      string
		wantStatus int
		wantCType  string
		wantBody   string
	}{
		{
			name:       "root",
			method:     http.MethodGet,
			target:     "/",
			wantStatus: http.StatusOK,
			wantCType:  "text/plain; charset=utf-8",
			wantBody:   "Hello World!",
		},
		{
			name:       "greeting",
			method:     http.MethodGet,
			target:     "/greeting/ada",
			wantStatus: http.StatusOK,
			wantCType:  "application/json; charset=utf-8",
			wantBody:   `"message":"Hello, ada!"`,
		},
		{
			name:       "stream",
			method:     http.MethodGet,
			target:     "/stream",
			wantStatus: http.StatusOK,
			wantBody:   "one\ntwo\nthree\n",
		},
		{
			name:       "invalid json",
			method:     http.MethodPost,
			target:     "/echo",
			body:       "{",
			ctype:      "application/json",
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid_request_error",
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			target:     "/nope",
			wantStatus: http.StatusNotFound,
			wantBody:   `"type":"not_found"`,
		},
		{
			name:       "wrong method",
			method:     http.MethodPost,
			target:     "/",
			wantStatus: http.StatusMethodNotAllowed,
			wantBody:   `"type":"method_not_allowed"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.ctype != "" {
				req.Header.Set("Content-Type", tt.ctype)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCType != "" && rec.Header().Get("Content-Type") != tt.wantCType {
				t.Errorf("Content-Type = %q, want %q", rec.Header().Get("Content-Type"), tt.wantCType)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestEcho_EchoesRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/echo?x=1", strings.NewReader(`{"a":[1,2]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Custom", "v")
	rec := httptest.NewRecorder()

	Echo().ServeHTTP(rec, req)

	var got EchoResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Method != http.MethodPut || got.Path != "/echo" {
		t.Errorf("method/path = %s %s", got.Method, got.Path)
	}
	if got.Query["x"] != "1" {
		t.Errorf("query = %v", got.Query)
	}
	if got.Headers["X-Custom"] != "v" {
		t.Errorf("headers = %v", got.Headers)
	}
	body, ok := got.Body.(map[string]any)
	if !ok {
		t.Fatalf("body = %#v, want object", got.Body)
	}
	if arr, _ := body["a"].([]any); len(arr) != 2 {
		t.Errorf("body = %v", body)
	}
}

func TestEcho_TextBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()

	Echo().ServeHTTP(rec, req)

	var got EchoResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Body != "plain" {
		t.Errorf("body = %#v", got.Body)
	}
}
