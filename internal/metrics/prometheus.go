package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tikozap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tikozap_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	intentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tikozap_intents_total",
			Help: "Customer messages by detected intent",
		},
		[]string{"intent"},
	)

	repliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tikozap_replies_total",
			Help: "Replies by source and channel",
		},
		[]string{"source", "channel"},
	)

	qualityGrades = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tikozap_quality_grades_total",
			Help: "Quality reports by grade",
		},
		[]string{"grade"},
	)

	qualityOverall = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tikozap_quality_overall_score",
			Help:    "Overall quality score distribution",
			Buckets: []float64{40, 55, 70, 75, 80, 85, 90, 95, 100},
		},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, durationSeconds float64) {
	status := "unknown"
	switch {
	case statusCode >= 500:
		status = "5xx"
	case statusCode >= 400:
		status = "4xx"
	case statusCode >= 300:
		status = "3xx"
	case statusCode >= 200:
		status = "2xx"
	}

	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

func RecordIntent(intent string) {
	intentsTotal.WithLabelValues(intent).Inc()
}

func RecordReply(source, channel string) {
	repliesTotal.WithLabelValues(source, channel).Inc()
}

func RecordQuality(grade string, overall int) {
	qualityGrades.WithLabelValues(grade).Inc()
	qualityOverall.Observe(float64(overall))
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
