package metrics

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
//
// Mount it at MetricsConfig.Path, typically ahead of the recorder's skip
// list so that scrapes are not recorded:
//
//	r.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			// Enable OpenMetrics encoding (preferred over Prometheus text format)
			EnableOpenMetrics: true,

			ErrorHandling: promhttp.ContinueOnError,
			ErrorLog:      slogErrorLogger{},
		},
	)
}

// HandlerWithOptions returns an HTTP handler with custom options.
func (c *Collector) HandlerWithOptions(opts promhttp.HandlerOpts) http.Handler {
	return promhttp.HandlerFor(c.registry, opts)
}

// slogErrorLogger adapts the default slog logger to promhttp.Logger.
type slogErrorLogger struct{}

func (slogErrorLogger) Println(v ...any) {
	slog.Default().Error("metrics collection failed", "component", "metrics", "error", fmt.Sprint(v...))
}
