package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merem_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"handler", "method", "code"},
	)

	httpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merem_http_request_errors_total",
			Help: "Total number of HTTP requests that resulted in a server error.",
		},
		[]string{"handler", "method"},
	)

	httpLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "merem_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"handler", "method"},
	)

	actionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merem_action_outcomes_total",
			Help: "Action handler results by action name and outcome.",
		},
		[]string{"action", "outcome"},
	)

	modelLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "merem_model_request_duration_seconds",
			Help:    "Text generation latency by model class.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model_class", "status"},
	)

	inboxMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merem_inbox_messages_total",
			Help: "Messages consumed from the async inbox by result.",
		},
		[]string{"result"},
	)
)

// Action outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= 500 {
		httpErrors.WithLabelValues(handler, method).Inc()
	}
	httpLatency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveAction counts one action handler result.
func ObserveAction(action, outcome string) {
	actionOutcomes.WithLabelValues(action, outcome).Inc()
}

// ObserveModelRequest records the latency of a text generation call.
func ObserveModelRequest(modelClass string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	modelLatency.WithLabelValues(modelClass, status).Observe(duration.Seconds())
}

// ObserveInbox counts one consumed inbox message.
func ObserveInbox(result string) {
	inboxMessages.WithLabelValues(result).Inc()
}

// Handler exposes the default registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
