package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// http and job pool
var (
	HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Requests labelled by route pattern and status",
	}, []string{"path", "status"})

	countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "count_jobs_in_queue",
		Help: "Upload and chat jobs waiting for a worker",
	})

	dispatcherSignalCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_signal_total",
		Help: "Times the dispatcher was asked for another worker",
	})

	activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_worker_count",
		Help: "Number of active workers",
	})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Time a worker spent on one job, labelled by type and outcome",
		Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"job"})
)

// rag pipeline
var (
	dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dependency_latency_seconds",
		Help:    "Latency of embedding, vector search, generation, index admin and persistence calls",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
	}, []string{"service"})

	tokenEstimates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_token_estimate_total",
		Help: "Estimated tokens (words x multiplier) per answered question",
	}, []string{"model", "direction"})

	persistenceWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_persistence_warnings_total",
		Help: "Durable store writes that failed after an answer was produced",
	}, []string{"step"})

	indexedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rag_indexed_chunks_total",
		Help: "Chunks embedded and written to the vector index",
	})
)

// HttpStatusRecorder remembers the status code written by the handler.
type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementJobsInQueue() { countJobsInQueue.Inc() }
func DecrementJobsInQueue() { countJobsInQueue.Dec() }

func StartDispatcherSignalCount() { dispatcherSignalCount.Inc() }

func IncrementActiveWorkerCount() { activeWorkerCount.Inc() }
func DecrementActiveWorkerCount() { activeWorkerCount.Dec() }

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	jobDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureTokenEstimate(model string, input int, output int) {
	tokenEstimates.WithLabelValues(model, "input").Add(float64(input))
	tokenEstimates.WithLabelValues(model, "output").Add(float64(output))
}

func IncrementPersistenceWarnings(step string) {
	persistenceWarnings.WithLabelValues(step).Inc()
}

func AddIndexedChunks(n int) {
	indexedChunks.Add(float64(n))
}
