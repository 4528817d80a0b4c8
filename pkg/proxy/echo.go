package proxy

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mercator-hq/loupe/pkg/respond"
)

// EchoResponse is the body returned by the echo route.
type EchoResponse struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Query   map[string]string `json:"query,omitempty"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body,omitempty"`
}

// Greeting is the body returned by the greeting route.
type Greeting struct {
	Message string    `json:"message"`
	Name    string    `json:"name"`
	Time    time.Time `json:"time"`
}

// maxEchoBody bounds how much of a request body the echo route reads.
const maxEchoBody = 1 << 20

// Echo returns the built-in routes served when no upstream is configured.
// Each route answers through a different emission path:
//
//	GET  /                 Send    plain text
//	GET  /greeting/{name}  JSON    structured value
//	ANY  /echo             JSON    the request as received
//	GET  /stream           End     chunked lines, then an empty End
func Echo() http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_ = respond.Send(w, http.StatusOK, []byte("Hello World!"))
	})

	r.Get("/greeting/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		_ = respond.JSON(w, http.StatusOK, Greeting{
			Message: "Hello, " + name + "!",
			Name:    name,
			Time:    time.Now().UTC(),
		})
	})

	r.HandleFunc("/echo", handleEcho)

	r.Get("/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		e := respond.AsEmitter(w)
		for _, line := range []string{"one\n", "two\n", "three\n"} {
			if err := e.End([]byte(line)); err != nil {
				return
			}
		}
		_ = e.End(nil)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = respond.Error(w, http.StatusNotFound, respond.ErrorTypeNotFound, "route not found: "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = respond.Error(w, http.StatusMethodNotAllowed, respond.ErrorTypeMethodNotAllowed,
			r.Method+" not allowed on "+r.URL.Path)
	})

	return r
}

func handleEcho(w http.ResponseWriter, r *http.Request) {
	resp := EchoResponse{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: make(map[string]string, len(r.Header)),
	}
	for k := range r.Header {
		resp.Headers[k] = r.Header.Get(k)
	}
	if q := r.URL.Query(); len(q) > 0 {
		resp.Query = make(map[string]string, len(q))
		for k := range q {
			resp.Query[k] = q.Get(k)
		}
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxEchoBody))
	if err != nil {
		_ = respond.Error(w, http.StatusBadRequest, respond.ErrorTypeInvalidRequest, "failed to read request body")
		return
	}
	if len(data) > 0 {
		resp.Body = string(data)
		if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
			var v any
			if err := json.Unmarshal(data, &v); err != nil {
				_ = respond.Error(w, http.StatusBadRequest, respond.ErrorTypeInvalidRequest, "invalid JSON body: "+err.Error())
				return
			}
			resp.Body = v
		}
	}

	_ = respond.JSON(w, http.StatusOK, resp)
}
