package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Resultado da admissão por papel. reason é "none" quando permitida.
	AdmissionDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_admission_decisions_total",
		Help: "Admission decisions grouped by role, outcome and deny reason",
	}, []string{"role", "outcome", "reason"})
	AdmissionFaults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_admission_faults_total",
		Help: "Admission evaluations that failed operationally and were answered with 500",
	}, []string{"stage"})
	AdmissionEvaluationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_admission_evaluation_seconds",
		Help:    "Time spent resolving identity and evaluating the admission decision",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
	StatsRecordErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_admission_stats_errors_total",
		Help: "Decision stats events that could not be recorded",
	})

	AuthzDenied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_authz_denied_total",
		Help: "Requests rejected by a route authorization guard",
	}, []string{"reason"})

	ConcurrencyRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_concurrency_rejected_total",
		Help: "Requests rejected because no in-flight slot was available in time",
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_inflight_requests",
		Help: "Requests currently holding a concurrency slot",
	})

	// route é o padrão da rota no chi, nunca o path cru (cardinalidade).
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_http_requests_total",
		Help: "HTTP requests served grouped by method, route pattern and status code",
	}, []string{"method", "route", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_http_request_duration_seconds",
		Help:    "HTTP request latency grouped by method and route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(AdmissionDecisions)
	prometheus.MustRegister(AdmissionFaults)
	prometheus.MustRegister(AdmissionEvaluationSeconds)
	prometheus.MustRegister(StatsRecordErrors)
	prometheus.MustRegister(AuthzDenied)
	prometheus.MustRegister(ConcurrencyRejected)
	prometheus.MustRegister(InFlight)
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPRequestDuration)
}

// MetricsHandler devolve o http.Handler que expõe as métricas Prometheus.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
