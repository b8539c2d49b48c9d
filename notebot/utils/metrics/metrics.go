package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ModelCalls counts model invocations by kind (generate, embed, transcribe) and outcome.
	ModelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notebot_model_calls_total",
			Help: "Total number of model invocations",
		},
		[]string{"kind", "outcome"},
	)

	ModelDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notebot_model_call_duration_seconds",
			Help:    "Model invocation latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 60},
		},
		[]string{"kind"},
	)

	// PipelineResults counts orchestrator outcomes: text_note, voice_note, search, analyze.
	PipelineResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notebot_pipeline_results_total",
			Help: "Pipeline requests by operation and result",
		},
		[]string{"operation", "result"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notebot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(ModelCalls, ModelDuration, PipelineResults, HTTPRequests)
}

// ObserveModel records one model call; use as defer metrics.ObserveModel("embed", time.Now(), &err).
func ObserveModel(kind string, start time.Time, err *error) {
	outcome := "ok"
	if err != nil && *err != nil {
		outcome = "error"
	}
	ModelCalls.WithLabelValues(kind, outcome).Inc()
	ModelDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func ObserveHTTP(method, path string, status int) {
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
