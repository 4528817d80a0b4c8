package metrics

import (
	"fmt"
	"sync"
	"time"

	"mercator-hq/loupe/pkg/config"
	"mercator-hq/loupe/pkg/recorder"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// otherRoute replaces route labels once the cardinality limit is reached.
const otherRoute = "other"

// Collector owns the Prometheus registry and the recorder metrics. It
// implements recorder.Observer, so it can be handed to
// (*recorder.Recorder).WithObserver directly.
//
// Route labels are route patterns ("/users/{id}"), not raw paths, and are
// bounded by a CardinalityLimiter; unmatched requests share the
// "unmatched" route.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics

	cardinalityLimiter *CardinalityLimiter
}

var _ recorder.Observer = (*Collector)(nil)

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is used.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "loupe",
//		Subsystem: "recorder",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		requestMetrics:     NewRequestMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}
}

// ObserveCompletion records a request that produced a response record.
func (c *Collector) ObserveCompletion(method, route string, status int, duration time.Duration, requestBytes, responseBytes int64) {
	if !c.config.Enabled {
		return
	}

	labelSet := fmt.Sprintf("%s:%s", method, route)
	if !c.cardinalityLimiter.Allow(labelSet) {
		route = otherRoute
	}

	c.requestMetrics.RecordRequest(method, route, status, duration)
	c.requestMetrics.RecordSize("request", requestBytes)
	c.requestMetrics.RecordSize("response", responseBytes)
}

// ObserveError records a request that produced an error record.
func (c *Collector) ObserveError(kind string) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordTransportError(kind)
}

// ObserveFallback records a field rendered with a fallback.
func (c *Collector) ObserveFallback(field string) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordFallback(field)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Totals is a point-in-time sum of the recorder counters.
type Totals struct {
	Requests        uint64
	ServerErrors    uint64
	TransportErrors uint64
	Fallbacks       uint64
}

// Sub returns the difference t - prev.
func (t Totals) Sub(prev Totals) Totals {
	return Totals{
		Requests:        t.Requests - prev.Requests,
		ServerErrors:    t.ServerErrors - prev.ServerErrors,
		TransportErrors: t.TransportErrors - prev.TransportErrors,
		Fallbacks:       t.Fallbacks - prev.Fallbacks,
	}
}

// Totals gathers the registry and sums the recorder counters over all
// label values.
func (c *Collector) Totals() (Totals, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return Totals{}, fmt.Errorf("failed to gather metrics: %w", err)
	}

	name := func(n string) string {
		return prometheus.BuildFQName(c.config.Namespace, c.config.Subsystem, n)
	}

	var t Totals
	for _, mf := range families {
		switch mf.GetName() {
		case name("requests_total"):
			for _, m := range mf.GetMetric() {
				n := counterValue(m)
				t.Requests += n
				if labelValue(m, "status") == "5xx" {
					t.ServerErrors += n
				}
			}
		case name("transport_errors_total"):
			t.TransportErrors += sumCounters(mf)
		case name("capture_fallbacks_total"):
			t.Fallbacks += sumCounters(mf)
		}
	}
	return t, nil
}

func sumCounters(mf *dto.MetricFamily) uint64 {
	var n uint64
	for _, m := range mf.GetMetric() {
		n += counterValue(m)
	}
	return n
}

func counterValue(m *dto.Metric) uint64 {
	return uint64(m.GetCounter().GetValue())
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
