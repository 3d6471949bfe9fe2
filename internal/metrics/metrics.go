package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/workload-runner/internal/request"
)

const namespace = "workload"

// Outcome labels for load generator attempts.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	attempts        *prometheus.CounterVec
	skipped         *prometheus.CounterVec
	workers         prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Outbound service requests by service, action and status code",
			},
			[]string{"service", "action", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Outbound service request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loadgen_attempts_total",
				Help:      "Load generator attempts by service and outcome",
			},
			[]string{"service", "outcome"},
		),
		skipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loadgen_skipped_total",
				Help:      "Iterations skipped because no target ids existed yet",
			},
			[]string{"service"},
		),
		workers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loadgen_active_workers",
			Help:      "Load generator workers currently running",
		}),
	}
}

// ObserveRequest implements transport.Observer. Network failures are
// recorded with status "error".
func (m *Metrics) ObserveRequest(req request.Request, statusCode int, latency time.Duration, err error) {
	status := "error"
	if err == nil {
		status = strconv.Itoa(statusCode)
	}
	m.requests.WithLabelValues(req.Service.Path(), req.Action.String(), status).Inc()
	m.requestDuration.WithLabelValues(req.Service.Path()).Observe(latency.Seconds())
}

func (m *Metrics) RecordAttempt(service string, success bool) {
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
	}
	m.attempts.WithLabelValues(service, outcome).Inc()
}

func (m *Metrics) RecordSkipped(service string) {
	m.skipped.WithLabelValues(service).Inc()
}

func (m *Metrics) WorkerStarted() { m.workers.Inc() }
func (m *Metrics) WorkerStopped() { m.workers.Dec() }

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
