// Package metrics provides Prometheus metrics collection for rdmon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rdmonitor/rdmon/domain/traffic"
)

const namespace = "rdmon"

// Outcome label for a successful query.
const OutcomeOK = "ok"

// Collector holds all Prometheus metrics for rdmon.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// Remote query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Refresh cycle metrics
	CyclesTotal    *prometheus.CounterVec
	CyclesInFlight prometheus.Gauge
	StaleWrites    prometheus.Counter

	// Last applied view
	WindowBytes *prometheus.GaugeVec
	HostUsedGB  *prometheus.GaugeVec

	// HTTP surface metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Remote API queries by query and outcome",
			},
			[]string{"query", "outcome"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Remote API query duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"query"},
		),
		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_cycles_total",
				Help:      "Refresh cycles started, by mode",
			},
			[]string{"mode"},
		),
		CyclesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "refresh_cycles_in_flight",
				Help:      "Refresh cycles whose queries have not all resolved",
			},
		),
		StaleWrites: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_writes_dropped_total",
				Help:      "Query results discarded because a newer cycle had started",
			},
		),
		WindowBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "window_bytes",
				Help:      "Bytes transferred in each rolling window, as last applied",
			},
			[]string{"window"},
		),
		HostUsedGB: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "host_used_gigabytes",
				Help:      "Per-host cumulative usage, as last applied",
			},
			[]string{"host"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// Outcome returns the outcome label of a query error.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return traffic.KindOf(err).String()
}

// ObserveQuery records one resolved remote query.
func (c *Collector) ObserveQuery(query string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.QueriesTotal.WithLabelValues(query, Outcome(err)).Inc()
	c.QueryDuration.WithLabelValues(query).Observe(d.Seconds())
}

// CycleStarted records the start of a refresh cycle.
func (c *Collector) CycleStarted(mode traffic.Mode) {
	if c == nil {
		return
	}
	c.CyclesTotal.WithLabelValues(mode.String()).Inc()
	c.CyclesInFlight.Inc()
}

// CycleDone records that every query of a cycle has resolved.
func (c *Collector) CycleDone() {
	if c == nil {
		return
	}
	c.CyclesInFlight.Dec()
}

// StaleWrite records a dropped result.
func (c *Collector) StaleWrite() {
	if c == nil {
		return
	}
	c.StaleWrites.Inc()
}

// SetWindow records the applied bytes of a window.
func (c *Collector) SetWindow(l traffic.Label, bytes int64) {
	if c == nil {
		return
	}
	c.WindowBytes.WithLabelValues(l.String()).Set(float64(bytes))
}

// SetHosts replaces the per-host gauges with hosts.
func (c *Collector) SetHosts(hosts []traffic.HostTraffic) {
	if c == nil {
		return
	}
	c.HostUsedGB.Reset()
	for _, h := range hosts {
		c.HostUsedGB.WithLabelValues(h.Host).Set(h.UsedGB)
	}
}

// ConfigReloaded records a config reload attempt.
func (c *Collector) ConfigReloaded(at time.Time, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.Set(float64(at.Unix()))
}

// NormalizePath keeps the path label bounded: routes are reported by their
// pattern and anything unrouted collapses into one series.
func NormalizePath(pattern string) string {
	if pattern == "" {
		return "unmatched"
	}
	return pattern
}
