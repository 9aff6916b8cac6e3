package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsSubmitted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "studio_jobs_submitted_total", Help: "Generation jobs accepted by the API"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "studio_rate_limit_rejects_total", Help: "Generation requests rejected by the rate limiter"})
	JobsCompleted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "studio_jobs_completed_total", Help: "Generation jobs completed successfully"})
	JobsFailed       = prometheus.NewCounter(prometheus.CounterOpts{Name: "studio_jobs_failed_total", Help: "Generation jobs that ended in failure"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "studio_queue_depth", Help: "Jobs waiting in the ready queue"})
	InFlightGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "studio_jobs_inflight", Help: "Jobs currently leased by workers"})
	GenerationTime   = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "studio_generation_seconds",
		Help:    "Time spent generating a single job",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	PollFetches    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "studio_poll_fetches_total", Help: "Job list fetches issued by pollers"}, []string{"result"})
	PollRegression = prometheus.NewCounter(prometheus.CounterOpts{Name: "studio_poll_status_regressions_total", Help: "Observed backwards status transitions"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// Register adds all collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			JobsSubmitted,
			RateLimitRejects,
			JobsCompleted,
			JobsFailed,
			QueueDepthGauge,
			InFlightGauge,
			GenerationTime,
			PollFetches,
			PollRegression,
		)
	})
}
