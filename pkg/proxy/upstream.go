package proxy

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"mercator-hq/loupe/pkg/config"
	"mercator-hq/loupe/pkg/respond"
	"mercator-hq/loupe/pkg/telemetry/logging"
)

// Upstream forwards requests to a single backend. Responses are written
// through the caller's ResponseWriter, so a recorder wrapping the handler
// captures upstream bodies on its write path.
type Upstream struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
	logger *slog.Logger
}

// NewUpstream creates an Upstream for cfg.URL.
//
// Returns an error if the URL is empty, unparsable, or has no scheme and
// host.
func NewUpstream(cfg config.UpstreamConfig, logger *slog.Logger) (*Upstream, error) {
	target, err := ParseTarget(cfg.URL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = config.DefaultUpstreamDialTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	u := &Upstream{target: target, logger: logger}
	u.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if cfg.PreserveHost {
				pr.Out.Host = pr.In.Host
			}
		},
		Transport:     transport,
		FlushInterval: cfg.FlushInterval,
		ErrorHandler:  u.handleError,
		ErrorLog:      slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return u, nil
}

// ParseTarget validates an upstream base URL.
func ParseTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("upstream URL is empty")
	}
	target, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", raw, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream URL %q must include scheme and host", raw)
	}
	return target, nil
}

// Target returns the upstream base URL.
func (u *Upstream) Target() *url.URL {
	return u.target
}

// ServeHTTP proxies r to the upstream.
func (u *Upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.proxy.ServeHTTP(w, r)
}

// handleError answers transport failures with a JSON 502. Nothing is
// written when the client has already gone away.
func (u *Upstream) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		u.logger.DebugContext(r.Context(), "client disconnected before upstream responded",
			"request_id", logging.GetRequestID(r.Context()),
			"path", r.URL.Path,
		)
		return
	}

	u.logger.WarnContext(r.Context(), "upstream request failed",
		"request_id", logging.GetRequestID(r.Context()),
		"upstream", u.target.Host,
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)

	_ = respond.Error(w, http.StatusBadGateway, respond.ErrorTypeBadGateway,
		fmt.Sprintf("upstream %s unavailable", u.target.Host))
}
