// Package proxy provides the handlers loupe records traffic for.
//
// Upstream is a reverse proxy to a single backend configured under
// upstream.url. Upstream responses are copied through the ResponseWriter
// the server hands it, so the recorder sees them on its write path. When
// the backend cannot be reached the client gets a JSON 502:
//
//	{"error": {"message": "upstream 127.0.0.1:8080 unavailable", "type": "bad_gateway"}}
//
// Echo is the built-in route set used when no upstream is configured. Its
// routes answer through each of the respond emission paths, which makes it
// a convenient target when checking what the recorder captures:
//
//	curl localhost:3000/
//	curl localhost:3000/greeting/ada
//	curl -XPOST -H 'Content-Type: application/json' -d '{"a":1}' localhost:3000/echo
//	curl localhost:3000/stream
package proxy
