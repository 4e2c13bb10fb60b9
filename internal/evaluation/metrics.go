package evaluation

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// eventsProcessed counts events handed to a tree.
	// Labels: pattern
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opencep",
		Subsystem: "evaluation",
		Name:      "events_total",
		Help:      "Total events handed to evaluation trees",
	}, []string{"pattern"})

	// matchesEmitted counts full matches delivered to the sink.
	// Labels: pattern
	matchesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opencep",
		Subsystem: "evaluation",
		Name:      "matches_total",
		Help:      "Total pattern matches emitted",
	}, []string{"pattern"})

	// eventLatency measures the time a tree spends on one event.
	// Labels: pattern
	eventLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "opencep",
		Subsystem: "evaluation",
		Name:      "event_latency_seconds",
		Help:      "Time spent evaluating a single event",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"pattern"})

	// runsTotal counts finished runs by outcome.
	// Labels: status (ok, error)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opencep",
		Subsystem: "evaluation",
		Name:      "runs_total",
		Help:      "Total evaluation runs by outcome",
	}, []string{"status"})
)

// RecordEvent records one event evaluated by the tree of pattern.
func RecordEvent(pattern string, elapsed time.Duration) {
	eventsProcessed.WithLabelValues(pattern).Inc()
	eventLatency.WithLabelValues(pattern).Observe(elapsed.Seconds())
}

// RecordMatches records n matches emitted for pattern.
func RecordMatches(pattern string, n int) {
	if n > 0 {
		matchesEmitted.WithLabelValues(pattern).Add(float64(n))
	}
}

// RecordRun records the outcome of a run.
func RecordRun(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	runsTotal.WithLabelValues(status).Inc()
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
