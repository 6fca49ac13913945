package middleware

import (
	"strconv"
	"time"

	"energy-network/internal/lp"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	solves   *prometheus.CounterVec
	solveDur prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "energy_network",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "energy_network",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "energy_network",
			Name:      "optimizations_total",
			Help:      "Optimizations by solver status.",
		}, []string{"status"}),
		solveDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "energy_network",
			Name:      "optimization_duration_seconds",
			Help:      "Wall time from planning to solved result.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.solves, m.solveDur,
	)
	return m
}

// Middleware counts and times every request by matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// ObserveSolve records one finished optimization.
func (m *Metrics) ObserveSolve(status lp.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.solves.WithLabelValues(status.String()).Inc()
	m.solveDur.Observe(elapsed.Seconds())
}
