package recorder

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"mercator-hq/loupe/pkg/telemetry/logging"
	"mercator-hq/loupe/pkg/telemetry/tracing"
)

// snapshotter builds request snapshots. Fallback renderings are reported
// to observer under the name of the field.
type snapshotter struct {
	opts     *Options
	redactor *logging.Redactor
	observer Observer
}

// snapshot captures the request-side fields of r. When body capture is
// enabled it reads up to the body limit from r.Body and replaces r.Body
// with a reader that replays the captured bytes before the rest of the
// stream, so downstream handlers see the body unchanged.
func (s *snapshotter) snapshot(r *http.Request) *RequestSnapshot {
	snap := &RequestSnapshot{
		Method:      r.Method,
		URL:         r.URL.RequestURI(),
		OriginalURL: r.RequestURI,
		Path:        r.URL.Path,
		Protocol:    s.protocol(r),
		Proto:       r.Proto,
		Host:        r.Host,
		ClientIP:    s.clientIP(r),
		UserAgent:   r.UserAgent(),
		Query:       r.URL.Query(),
		Params:      map[string]string{},
		Cookies:     s.cookies(r),
	}
	if snap.OriginalURL == "" {
		snap.OriginalURL = snap.URL
	}

	var headerRedactor *logging.Redactor
	if s.opts.RedactHeaders {
		headerRedactor = s.redactor
	}
	headers, quoted := displayHeaders(r.Header, headerRedactor)
	snap.Headers = headers
	if quoted > 0 {
		s.observer.ObserveFallback("request_header")
	}

	if s.opts.TraceContext {
		snap.TraceID, snap.SpanID, _ = tracing.IDs(r.Header)
	}

	snap.Body = NoRequestBody
	if s.opts.CaptureRequestBody {
		s.captureBody(r, snap)
	}

	return snap
}

// protocol returns "https" for TLS connections, or the forwarded protocol
// when proxies are trusted.
func (s *snapshotter) protocol(r *http.Request) string {
	if s.opts.TrustProxy {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			proto, _, _ = strings.Cut(proto, ",")
			return strings.ToLower(strings.TrimSpace(proto))
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// clientIP returns the address of the client. RemoteAddr may already have
// been rewritten by a real-IP middleware, in which case it has no port.
func (s *snapshotter) clientIP(r *http.Request) string {
	if s.opts.TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *snapshotter) cookies(r *http.Request) map[string]string {
	out := map[string]string{}
	for _, c := range r.Cookies() {
		v := c.Value
		if s.opts.RedactHeaders && v != "" {
			v = logging.Masked
		}
		out[c.Name] = v
	}
	return out
}

// captureBody reads the bounded body prefix, restores r.Body and fills the
// body fields of snap.
func (s *snapshotter) captureBody(r *http.Request, snap *RequestSnapshot) {
	if r.Body == nil || r.Body == http.NoBody {
		return
	}

	limit := s.opts.maxBody()
	buf, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	r.Body = &replayBody{
		Reader: io.MultiReader(bytes.NewReader(buf), r.Body),
		Closer: r.Body,
	}
	if err != nil {
		s.observer.ObserveFallback("request_body")
	}
	if len(buf) == 0 {
		return
	}

	truncated := int64(len(buf)) > limit
	if truncated {
		buf = buf[:limit]
	}
	snap.BodyBytes = int64(len(buf))
	snap.BodyTruncated = truncated

	size := len(buf)
	if r.ContentLength > 0 {
		size = int(r.ContentLength)
	}

	parsed, display, ok := parseBody(r.Header.Get("Content-Type"), buf, size, truncated)
	if !ok {
		s.observer.ObserveFallback("request_body")
	}
	snap.ParsedBody = parsed
	snap.Body = display
	snap.RawBody = renderRaw(buf, size, truncated)

	if s.opts.RedactBodies {
		snap.Body = s.redactor.RedactString(snap.Body)
		snap.RawBody = s.redactor.RedactString(snap.RawBody)
	}
}

// parseBody decodes JSON and form bodies. ok is false when a body of a
// structured media type failed to decode; the raw text is used instead.
func parseBody(contentType string, data []byte, size int, truncated bool) (parsed any, display string, ok bool) {
	if !utf8.Valid(data) {
		return nil, binaryMarker(size), true
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var v any
		if truncated || json.Unmarshal(data, &v) != nil {
			return string(data), renderBytes(data, size, truncated), false
		}
		return v, prettyJSON(data), true

	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return string(data), renderBytes(data, size, truncated), false
		}
		out, _ := renderValue(values)
		return values, out, true
	}

	if truncated {
		return string(data), renderBytes(data, size, truncated), true
	}
	return string(data), string(data), true
}

// renderRaw renders the raw captured bytes without reformatting.
func renderRaw(data []byte, size int, truncated bool) string {
	if !utf8.Valid(data) {
		return binaryMarker(size)
	}
	if truncated {
		return string(data) + truncationMarker(size)
	}
	return string(data)
}

// replayBody serves the captured prefix followed by the unread remainder
// and closes the original body.
type replayBody struct {
	io.Reader
	io.Closer
}

// routeInfo reads route parameters and patterns resolved by chi. It must
// be called after the router has handled the request.
func routeInfo(r *http.Request) (params map[string]string, route, basePath string) {
	params = map[string]string{}

	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return params, "", ""
	}

	for i, key := range rctx.URLParams.Keys {
		if i < len(rctx.URLParams.Values) {
			params[key] = rctx.URLParams.Values[i]
		}
	}

	route = rctx.RoutePattern()
	if n := len(rctx.RoutePatterns); n > 1 {
		var b strings.Builder
		for _, p := range rctx.RoutePatterns[:n-1] {
			b.WriteString(strings.TrimSuffix(strings.TrimSuffix(p, "/*"), "/"))
		}
		basePath = b.String()
	}
	return params, route, basePath
}
