// Package metrics exposes scheduling and transport counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shepherd"

// Outcome labels for notifications and outbox retries.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultQueued  = "queued"
	ResultSkipped = "skipped"
)

// Metrics holds every collector registered by the service.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration      *prometheus.HistogramVec
	queryDuration        *prometheus.HistogramVec
	appointmentsCreated  prometheus.Counter
	transitions          *prometheus.CounterVec
	availabilityConflict prometheus.Counter
	accessDenied         *prometheus.CounterVec
	notifications        *prometheus.CounterVec
	outboxRetries        *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
		queryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database call latency by operation.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),
		appointmentsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_created_total",
			Help:      "Appointments requested by members.",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Appointment status transitions by source and target status.",
		}, []string{"from", "to"}),
		availabilityConflict: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_conflicts_total",
			Help:      "Availability writes refused because the slot was taken.",
		}),
		accessDenied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Operations refused by the access policy.",
		}, []string{"resource", "action"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Confirmation notifications by result.",
		}, []string{"result"}),
		outboxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retries_total",
			Help:      "Outbox replay attempts by result.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}

// ObserveQuery records one database call. It satisfies storage.QueryObserver.
func (m *Metrics) ObserveQuery(op string, d time.Duration) {
	m.queryDuration.WithLabelValues(op).Observe(d.Seconds())
}

// AppointmentCreated counts a new appointment.
func (m *Metrics) AppointmentCreated() { m.appointmentsCreated.Inc() }

// Transition counts a status change.
func (m *Metrics) Transition(from, to string) { m.transitions.WithLabelValues(from, to).Inc() }

// AvailabilityConflict counts a refused availability write.
func (m *Metrics) AvailabilityConflict() { m.availabilityConflict.Inc() }

// AccessDenied counts a refused operation.
func (m *Metrics) AccessDenied(resource, action string) {
	m.accessDenied.WithLabelValues(resource, action).Inc()
}

// Notification counts a notification outcome.
func (m *Metrics) Notification(result string) { m.notifications.WithLabelValues(result).Inc() }

// OutboxRetry counts an outbox replay outcome.
func (m *Metrics) OutboxRetry(result string) { m.outboxRetries.WithLabelValues(result).Inc() }
