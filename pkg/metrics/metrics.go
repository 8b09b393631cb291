// Package metrics provides Prometheus metrics for the AURA vulnerability
// modeling service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all exported series.
const namespace = "aura"

// Manager owns the metric instruments. A package-level singleton keeps call
// sites terse; everything registers on a private registry so the default Go
// collectors never collide.
type Manager struct {
	registry *prometheus.Registry

	// Inference and personalization
	inferenceTotal          prometheus.Counter
	inferenceLatency        prometheus.Histogram
	personalizationTotal    prometheus.Counter
	personalizationDuration prometheus.Histogram
	personalizationLoss     prometheus.Gauge

	// Simulation and intervention search
	simulationTotal    prometheus.Counter
	simulationRollouts prometheus.Counter
	interventionTotal  prometheus.Counter

	// Resource state
	userCount     prometheus.Gauge
	adapterCount  prometheus.Gauge
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	workerCount   prometheus.Gauge

	// Queue health
	queueEnqueueTotal  prometheus.Counter
	queueDropTotal     prometheus.Counter
	jobFailureTotal    prometheus.Counter
	ingestWarningTotal prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Runtime
	systemMemoryBytes prometheus.Gauge
	systemGoroutines  prometheus.Gauge
}

var manager = newManager() //nolint:gochecknoglobals // singleton metrics manager

func newManager() *Manager {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Manager{
		registry: reg,
		inferenceTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "inference_total",
			Help: "Forward passes served by the encoder or a personal adapter.",
		}),
		inferenceLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "inference_duration_seconds",
			Help:    "Forward-pass latency.",
			Buckets: prometheus.DefBuckets,
		}),
		personalizationTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "personalization_total",
			Help: "Personalization runs, including no-op runs on short histories.",
		}),
		personalizationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "personalization_duration_seconds",
			Help:    "Wall time of one personalization run.",
			Buckets: prometheus.DefBuckets,
		}),
		personalizationLoss: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "personalization_last_loss",
			Help: "Final epoch loss of the most recent personalization run.",
		}),
		simulationTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "simulation_total",
			Help: "Counterfactual simulations served.",
		}),
		simulationRollouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "simulation_rollouts_total",
			Help: "Stochastic rollouts executed across all simulations.",
		}),
		interventionTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "intervention_searches_total",
			Help: "Intervention searches served.",
		}),
		userCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "users",
			Help: "Registered users.",
		}),
		adapterCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "adapters",
			Help: "Cached personal adapters.",
		}),
		queueSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "personalize_queue_size",
			Help: "Jobs waiting in the personalization queue.",
		}),
		queueCapacity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "personalize_queue_capacity",
			Help: "Capacity of the personalization queue.",
		}),
		workerCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "personalize_workers",
			Help: "Running personalization workers.",
		}),
		queueEnqueueTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "personalize_enqueue_total",
			Help: "Jobs accepted by the personalization queue.",
		}),
		queueDropTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "personalize_drop_total",
			Help: "Jobs rejected due to backpressure or a closed queue.",
		}),
		jobFailureTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "personalize_failure_total",
			Help: "Background personalization jobs that failed.",
		}),
		ingestWarningTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ingest_warnings_total",
			Help: "Validation warnings attached to submitted records.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by endpoint, method, and status.",
		}, []string{"endpoint", "method", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		systemMemoryBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "system_memory_bytes",
			Help: "Allocated heap bytes.",
		}),
		systemGoroutines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "system_goroutines",
			Help: "Current goroutine count.",
		}),
	}
}

// Handler serves the private registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(manager.registry, promhttp.HandlerOpts{})
}

// Recording helpers.

func RecordInference(seconds float64) {
	manager.inferenceTotal.Inc()
	manager.inferenceLatency.Observe(seconds)
}

func RecordPersonalization(seconds, finalLoss float64) {
	manager.personalizationTotal.Inc()
	manager.personalizationDuration.Observe(seconds)
	manager.personalizationLoss.Set(finalLoss)
}

func RecordSimulation(rollouts int) {
	manager.simulationTotal.Inc()
	manager.simulationRollouts.Add(float64(rollouts))
}

func RecordInterventionSearch()  { manager.interventionTotal.Inc() }
func RecordQueueEnqueue()        { manager.queueEnqueueTotal.Inc() }
func RecordQueueDrop()           { manager.queueDropTotal.Inc() }
func RecordJobFailure()          { manager.jobFailureTotal.Inc() }
func RecordIngestWarnings(n int) { manager.ingestWarningTotal.Add(float64(n)) }
func UpdateUserCount(n int)      { manager.userCount.Set(float64(n)) }
func UpdateAdapterCount(n int)   { manager.adapterCount.Set(float64(n)) }
func UpdateQueueSize(n int)      { manager.queueSize.Set(float64(n)) }
func UpdateQueueCapacity(n int)  { manager.queueCapacity.Set(float64(n)) }
func UpdateWorkerCount(n int)    { manager.workerCount.Set(float64(n)) }

func UpdateSystemMemoryUsage(bytes uint64) { manager.systemMemoryBytes.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int)     { manager.systemGoroutines.Set(float64(n)) }

// RecordHTTPRequest tracks one served request.
func RecordHTTPRequest(endpoint, method, status string, seconds float64) {
	manager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	manager.httpRequestDuration.WithLabelValues(endpoint).Observe(seconds)
}
