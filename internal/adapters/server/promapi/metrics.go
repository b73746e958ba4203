// Package promapi exports service and request metrics in the Prometheus text format.
package promapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskmon"

// scrapeTimeout bounds one status count during a scrape.
const scrapeTimeout = 2 * time.Second

// StatusSource counts activities by effective status.
type StatusSource interface {
	StatusDistribution(context.Context, app.Scope) (map[domain.Status]int, error)
}

// scrapeActor reads every activity. It is never persisted or written to the audit log.
var scrapeActor = app.Actor{UserID: "metrics-exporter", Username: "metrics-exporter", Role: domain.RoleAdmin}

// Metrics owns a private registry holding request and activity collectors.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// New builds the registry. A nil source disables the activity gauges.
func New(source StatusSource, logger *log.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.errors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if source != nil {
		m.registry.MustRegister(&activityCollector{source: source, logger: logger})
	}
	return m
}

// Registry exposes the registry for tests and additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observe records one finished request.
func (m *Metrics) Observe(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	code := strconv.Itoa(status)
	m.requests.WithLabelValues(method, route, code).Inc()
	m.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
	if status >= http.StatusBadRequest {
		m.errors.WithLabelValues(method, route, code).Inc()
	}
}

var activitiesDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "", "activities"),
	"Activities by effective status.",
	[]string{"status"},
	nil,
)

// activityCollector reads status counts at scrape time.
type activityCollector struct {
	source StatusSource
	logger *log.Logger
}

// Describe implements prometheus.Collector.
func (c *activityCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- activitiesDesc
}

// Collect implements prometheus.Collector.
func (c *activityCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(app.WithActor(context.Background(), scrapeActor), scrapeTimeout)
	defer cancel()

	counts, err := c.source.StatusDistribution(ctx, app.Scope{})
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("activity metrics unavailable", "err", err)
		}
		return
	}
	for _, st := range domain.AllStatuses() {
		ch <- prometheus.MustNewConstMetric(activitiesDesc, prometheus.GaugeValue, float64(counts[st]), string(st))
	}
}
