package recorder

import (
	"context"
	"sync/atomic"
	"time"
)

// RequestContext is the capture state of one request. It is created when
// the request arrives and is never shared with another request.
type RequestContext struct {
	CorrelationID string
	Start         time.Time

	// Request is written once on arrival and only read afterwards.
	Request *RequestSnapshot

	body Cell[Payload]
	done atomic.Bool

	// ctx carries the correlation and trace IDs for sinks.
	ctx context.Context
}

// ResponseBody returns the first non-empty payload emitted by the handler.
func (rc *RequestContext) ResponseBody() (Payload, bool) {
	return rc.body.Get()
}

// claim marks the request as terminated. Only the first caller gets true.
func (rc *RequestContext) claim() bool {
	return rc.done.CompareAndSwap(false, true)
}

type contextKey struct{}

// FromContext returns the RequestContext of the request being recorded,
// or nil when ctx does not belong to a recorded request.
func FromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rc
}

// CorrelationID returns the correlation ID of the recorded request in ctx.
func CorrelationID(ctx context.Context) string {
	if rc := FromContext(ctx); rc != nil {
		return rc.CorrelationID
	}
	return ""
}
