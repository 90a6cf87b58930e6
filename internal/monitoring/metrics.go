package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. Construct it once per process;
// collectors register against the default registry.
type Metrics struct {
	// Simulation metrics
	SimulationsStarted prometheus.Counter
	SimulationsActive  prometheus.Gauge
	SimulationsFailed  prometheus.Counter
	ProgressRecords    prometheus.Counter
	RunDuration        prometheus.Histogram

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		SimulationsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erdsim_simulations_started_total",
			Help: "Total number of simulation processes launched",
		}),
		SimulationsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "erdsim_simulations_active",
			Help: "Number of simulation processes currently running",
		}),
		SimulationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erdsim_simulations_failed_total",
			Help: "Total number of simulation launches that failed",
		}),
		ProgressRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "erdsim_progress_records_total",
			Help: "Total number of progress records emitted",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "erdsim_run_duration_seconds",
			Help:    "Wall-clock duration of finished simulation runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erdsim_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "erdsim_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordLaunch registers a successful process launch.
func (m *Metrics) RecordLaunch() {
	if m == nil {
		return
	}
	m.SimulationsStarted.Inc()
	m.SimulationsActive.Inc()
}

// RecordLaunchFailure registers a failed launch attempt.
func (m *Metrics) RecordLaunchFailure() {
	if m == nil {
		return
	}
	m.SimulationsFailed.Inc()
}

// RecordProgress registers one emitted progress record.
func (m *Metrics) RecordProgress() {
	if m == nil {
		return
	}
	m.ProgressRecords.Inc()
}

// RecordFinish registers the end of a run.
func (m *Metrics) RecordFinish(duration time.Duration) {
	if m == nil {
		return
	}
	m.SimulationsActive.Dec()
	m.RunDuration.Observe(duration.Seconds())
}

// Middleware returns a gin middleware recording HTTP request metrics.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		c.Next()

		m.RequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.RequestDuration.WithLabelValues(
			c.Request.Method, path,
		).Observe(time.Since(start).Seconds())
	}
}
