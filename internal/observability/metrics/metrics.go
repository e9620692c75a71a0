// Package metrics wires prometheus instrumentation for the dialogue
// engine. All observer methods are nil-safe so call sites never need a
// guard.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors of the dialogue engine.
type Metrics struct {
	TasksSubmitted  *prometheus.CounterVec
	TasksCompleted  *prometheus.CounterVec
	TaskDuration    *prometheus.HistogramVec
	TaskRetries     *prometheus.CounterVec
	DialogTurns     *prometheus.CounterVec
	DialogResets    prometheus.Counter
	BookingOutcomes *prometheus.CounterVec
}

// New registers the collectors on reg. A nil registerer yields metrics
// that collect without being exported, which tests rely on.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alice_tasks_submitted_total",
			Help: "Background tasks submitted, by kind.",
		}, []string{"kind"}),
		TasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alice_tasks_completed_total",
			Help: "Background tasks finished, by kind and terminal status.",
		}, []string{"kind", "status"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alice_task_duration_seconds",
			Help:    "Wall time from submission to terminal status.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"kind"}),
		TaskRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alice_task_retries_total",
			Help: "Retry attempts after transient registry failures.",
		}, []string{"kind"}),
		DialogTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alice_dialog_turns_total",
			Help: "Dialogue turns handled, by state at entry.",
		}, []string{"state"}),
		DialogResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alice_dialog_resets_total",
			Help: "Sessions restarted from the beginning.",
		}),
		BookingOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alice_booking_outcomes_total",
			Help: "Appointment attempts, by registry status code.",
		}, []string{"status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TasksSubmitted,
			m.TasksCompleted,
			m.TaskDuration,
			m.TaskRetries,
			m.DialogTurns,
			m.DialogResets,
			m.BookingOutcomes,
		)
	}
	return m
}

// ObserveTaskSubmitted counts a submission.
func (m *Metrics) ObserveTaskSubmitted(kind string) {
	if m == nil {
		return
	}
	m.TasksSubmitted.WithLabelValues(kind).Inc()
}

// ObserveTaskCompleted records a terminal status with its duration.
func (m *Metrics) ObserveTaskCompleted(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TasksCompleted.WithLabelValues(kind, status).Inc()
	m.TaskDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveTaskRetry counts one retry attempt.
func (m *Metrics) ObserveTaskRetry(kind string) {
	if m == nil {
		return
	}
	m.TaskRetries.WithLabelValues(kind).Inc()
}

// ObserveDialogTurn counts a handled turn.
func (m *Metrics) ObserveDialogTurn(state string) {
	if m == nil {
		return
	}
	m.DialogTurns.WithLabelValues(state).Inc()
}

// ObserveDialogReset counts a session restart.
func (m *Metrics) ObserveDialogReset() {
	if m == nil {
		return
	}
	m.DialogResets.Inc()
}

// ObserveBookingOutcome counts a booking attempt by status code.
func (m *Metrics) ObserveBookingOutcome(status string) {
	if m == nil {
		return
	}
	m.BookingOutcomes.WithLabelValues(status).Inc()
}
