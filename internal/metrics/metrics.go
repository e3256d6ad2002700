// Package metrics exposes the service's Prometheus collectors. All
// collectors register on the default registry and are served by the
// /metrics route.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipcast_jobs_admitted_total",
		Help: "Jobs accepted into the queue.",
	})

	JobsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipcast_jobs_rejected_total",
		Help: "Submissions rejected at admission, by error code.",
	}, []string{"code"})

	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipcast_jobs_completed_total",
		Help: "Jobs that produced a video.",
	})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipcast_jobs_failed_total",
		Help: "Jobs that reached terminal failure, by error kind.",
	}, []string{"kind"})

	JobsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipcast_jobs_retried_total",
		Help: "Requeues after a retriable failure.",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clipcast_active_workers",
		Help: "Jobs currently processing.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clipcast_queue_depth",
		Help: "Jobs waiting for a worker slot.",
	})

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clipcast_job_duration_seconds",
		Help:    "End-to-end pipeline time for completed jobs.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	DailySpend = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "clipcast_daily_spend_usd",
		Help: "Today's spend in USD, committed estimates and realized cost.",
	}, []string{"kind"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipcast_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipcast_http_request_duration_seconds",
		Help:    "HTTP handler latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// GinMiddleware records request counts and latency per route template.
// Unmatched paths collapse into one series to bound cardinality.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
