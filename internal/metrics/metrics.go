// Package metrics provides Prometheus metrics for timetree
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for timetree
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Timeline operation metrics
	TimelineOpsTotal   *prometheus.CounterVec
	TimelineOpDuration *prometheus.HistogramVec
	TimelinesTotal     prometheus.Gauge
	StatesTotal        prometheus.Gauge

	// Layout and rendering metrics
	LayoutsComputedTotal prometheus.Counter
	SVGRendersTotal      prometheus.Counter

	// Event feed metrics
	WSClientsConnected prometheus.Gauge
	EventsPublished    prometheus.Counter

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// HTTP request metrics
	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetree_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timetree_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "timetree_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Timeline operation metrics
	m.TimelineOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetree_timeline_ops_total",
			Help: "Total number of timeline operations",
		},
		[]string{"op", "status"},
	)

	m.TimelineOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timetree_timeline_op_duration_seconds",
			Help:    "Duration of timeline operations in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"op"},
	)

	m.TimelinesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "timetree_timelines_total",
			Help: "Number of timelines currently loaded",
		},
	)

	m.StatesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "timetree_states_total",
			Help: "Total number of states across loaded timelines",
		},
	)

	// Layout and rendering metrics
	m.LayoutsComputedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "timetree_layouts_computed_total",
			Help: "Total number of layout computations",
		},
	)

	m.SVGRendersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "timetree_svg_renders_total",
			Help: "Total number of SVG renders",
		},
	)

	// Event feed metrics
	m.WSClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "timetree_ws_clients_connected",
			Help: "Number of connected WebSocket event feed clients",
		},
	)

	m.EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "timetree_events_published_total",
			Help: "Total number of change events published",
		},
	)

	// Server metrics
	m.ServerUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "timetree_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime periodically updates the server uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request with its status
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTimelineOp records a timeline operation
func (m *Metrics) RecordTimelineOp(op, status string, duration time.Duration) {
	m.TimelineOpsTotal.WithLabelValues(op, status).Inc()
	m.TimelineOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// UpdateTreeStats updates timeline and state gauges
func (m *Metrics) UpdateTreeStats(timelineCount, stateCount int) {
	m.TimelinesTotal.Set(float64(timelineCount))
	m.StatesTotal.Set(float64(stateCount))
}
