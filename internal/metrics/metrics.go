package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the polling loop reports into. A nil *Collector is a
// valid Recorder that records nothing.
type Recorder interface {
	CycleFinished(status string, elapsed time.Duration)
	ContentCollected(source string, n int)
	SourceFailed(source, kind string)
	OpportunityFound(kind string)
	NotificationSent(status string)
	SeenSize(n int)
}

// Collector owns the service metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	contents      *prometheus.CounterVec
	sourceErrors  *prometheus.CounterVec
	opportunities *prometheus.CounterVec
	notifications *prometheus.CounterVec
	seenSize      prometheus.Gauge
}

// New builds and registers the collectors under a namespace derived from the
// service name.
func New(serviceName string) *Collector {
	ns := strings.ReplaceAll(strings.TrimSpace(serviceName), "-", "_")
	if ns == "" {
		ns = "alpha_hunter"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "cycles_total",
		Help:      "Polling cycles by outcome.",
	}, []string{"status"})

	c.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of one polling cycle.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	c.contents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "contents_collected_total",
		Help:      "Normalized items returned by each source before deduplication.",
	}, []string{"source"})

	c.sourceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "source_errors_total",
		Help:      "Source collection failures by error kind.",
	}, []string{"source", "kind"})

	c.opportunities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "opportunities_total",
		Help:      "Opportunities emitted by the aggregator.",
	}, []string{"kind"})

	c.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "notifications_total",
		Help:      "Notification attempts by outcome.",
	}, []string{"status"})

	c.seenSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "seen_ids",
		Help:      "Entries currently held by the seen store.",
	})

	c.registry.MustRegister(
		c.cycles,
		c.cycleDuration,
		c.contents,
		c.sourceErrors,
		c.opportunities,
		c.notifications,
		c.seenSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) CycleFinished(status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.cycles.WithLabelValues(status).Inc()
	c.cycleDuration.Observe(elapsed.Seconds())
}

func (c *Collector) ContentCollected(source string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.contents.WithLabelValues(source).Add(float64(n))
}

func (c *Collector) SourceFailed(source, kind string) {
	if c == nil {
		return
	}
	c.sourceErrors.WithLabelValues(source, kind).Inc()
}

func (c *Collector) OpportunityFound(kind string) {
	if c == nil {
		return
	}
	c.opportunities.WithLabelValues(kind).Inc()
}

func (c *Collector) NotificationSent(status string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(status).Inc()
}

func (c *Collector) SeenSize(n int) {
	if c == nil {
		return
	}
	c.seenSize.Set(float64(n))
}
