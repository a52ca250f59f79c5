package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	ingestedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingested_records_total",
			Help: "Total number of certification records ingested",
		},
		[]string{"service"},
	)

	flaggedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagged_records_total",
			Help: "Total number of ingested records carrying at least one risk flag",
		},
		[]string{"service"},
	)
)

// Metrics middleware records Prometheus metrics
func Metrics(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		endpoint := c.FullPath()
		method := c.Request.Method

		if endpoint == "" {
			endpoint = "not_found"
		}

		httpRequestsTotal.WithLabelValues(serviceName, method, endpoint, status).Inc()
		httpRequestDuration.WithLabelValues(serviceName, method, endpoint, status).Observe(duration)
	}
}

// RecordIngestion counts the outcome of one ingestion run.
func RecordIngestion(serviceName string, records, flagged int) {
	ingestedRecordsTotal.WithLabelValues(serviceName).Add(float64(records))
	flaggedRecordsTotal.WithLabelValues(serviceName).Add(float64(flagged))
}
