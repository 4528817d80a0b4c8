// Package respond defines the three response-body emission paths used by
// loupe handlers and a base implementation over a plain http.ResponseWriter.
//
// Handlers should emit bodies through the package helpers (Send, JSON, End)
// instead of calling Write directly. The helpers dispatch through the
// Emitter implemented by the response writer when there is one, which lets
// the recorder observe the payload regardless of the path a handler chose:
//
//	func(w http.ResponseWriter, r *http.Request) {
//	    _ = respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
//	}
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Emitter is the set of body-emission operations of a response.
//
//   - Send writes a complete body.
//   - JSON serializes a structured value and writes it as the body.
//   - End finalizes the response, optionally writing a trailing chunk.
type Emitter interface {
	Send(body []byte) (int, error)
	JSON(v any) error
	End(chunk []byte) error
}

// Writer is the base Emitter over an http.ResponseWriter.
type Writer struct {
	http.ResponseWriter
}

// Send writes body as the response body. A Content-Type is sniffed from the
// body when the handler has not set one.
func (w Writer) Send(body []byte) (int, error) {
	if w.Header().Get("Content-Type") == "" && len(body) > 0 {
		w.Header().Set("Content-Type", http.DetectContentType(body))
	}
	return w.ResponseWriter.Write(body)
}

// JSON marshals v and hands the encoded bytes to Send.
func (w Writer) JSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", ContentTypeJSON)
	}

	_, err = w.Send(data)
	return err
}

// End writes chunk, if any, and flushes buffered data to the client.
func (w Writer) End(chunk []byte) error {
	if len(chunk) > 0 {
		if _, err := w.ResponseWriter.Write(chunk); err != nil {
			return err
		}
	}

	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// ContentTypeJSON is the media type written by JSON.
const ContentTypeJSON = "application/json; charset=utf-8"

// AsEmitter returns w itself when it implements Emitter, otherwise a Writer
// around it.
func AsEmitter(w http.ResponseWriter) Emitter {
	if e, ok := w.(Emitter); ok {
		return e
	}
	return Writer{ResponseWriter: w}
}

// Send writes status and body through the writer's Emitter. The Content-Type
// is sniffed before the status is written when unset. A zero status leaves
// the status to the implicit 200.
func Send(w http.ResponseWriter, status int, body []byte) error {
	if status > 0 {
		if w.Header().Get("Content-Type") == "" && len(body) > 0 {
			w.Header().Set("Content-Type", http.DetectContentType(body))
		}
		w.WriteHeader(status)
	}
	_, err := AsEmitter(w).Send(body)
	return err
}

// JSON writes status and the JSON encoding of v through the writer's Emitter.
func JSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", ContentTypeJSON)
	if status > 0 {
		w.WriteHeader(status)
	}
	return AsEmitter(w).JSON(v)
}

// End writes status and finalizes the response with an optional chunk.
func End(w http.ResponseWriter, status int, chunk []byte) error {
	if status > 0 {
		w.WriteHeader(status)
	}
	return AsEmitter(w).End(chunk)
}
