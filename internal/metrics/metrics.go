package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "sigcrawl"
	subsystem = "server"
)

// Label names.
const (
	LabelCommand = "command"
	LabelResult  = "result"
)

// Result label values.
const (
	ResultOffsets     = "offsets"
	ResultNotFound    = "not_found"
	ResultQuarantined = "quarantined"
	ResultError       = "error"
)

// Metrics tracks the request server. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	acceptedTotal    prometheus.Counter
	acceptErrorTotal prometheus.Counter
	rejectedTotal    prometheus.Counter
	panicsTotal      prometheus.Counter

	queueDepth  prometheus.Gauge
	workersBusy prometheus.Gauge
}

// NewMetrics creates the server metrics and registers them on registry.
// If registry is nil, metrics are created but not registered (useful for testing).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Total number of handled requests",
			},
			[]string{LabelCommand, LabelResult},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "request_duration_seconds",
				Help:      "Time spent handling a request, from first read to response write",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{LabelCommand},
		),
		acceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted connections",
		}),
		acceptErrorTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "accept_errors_total",
			Help:      "Total number of failed accept calls",
		}),
		rejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_rejected_total",
			Help:      "Connections closed without being served because the pool was stopped",
		}),
		panicsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handler_panics_total",
			Help:      "Total number of recovered handler panics",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Connections waiting for a worker",
		}),
		workersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers_busy",
			Help:      "Workers currently serving a connection",
		}),
	}

	if registry != nil {
		registry.MustRegister(
			m.requestsTotal,
			m.requestDuration,
			m.acceptedTotal,
			m.acceptErrorTotal,
			m.rejectedTotal,
			m.panicsTotal,
			m.queueDepth,
			m.workersBusy,
		)
	}
	return m
}

func (m *Metrics) ObserveRequest(command, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(command, result).Inc()
	m.requestDuration.WithLabelValues(command).Observe(d.Seconds())
}

func (m *Metrics) ObserveAccept() {
	if m == nil {
		return
	}
	m.acceptedTotal.Inc()
}

func (m *Metrics) ObserveAcceptError() {
	if m == nil {
		return
	}
	m.acceptErrorTotal.Inc()
}

func (m *Metrics) ObserveRejected() {
	if m == nil {
		return
	}
	m.rejectedTotal.Inc()
}

func (m *Metrics) ObservePanic() {
	if m == nil {
		return
	}
	m.panicsTotal.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// WorkerStarted marks a worker busy until the returned func is called.
func (m *Metrics) WorkerStarted() func() {
	if m == nil {
		return func() {}
	}
	m.workersBusy.Inc()
	return m.workersBusy.Dec
}

// Handler exposes the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
