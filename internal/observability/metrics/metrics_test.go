package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTaskSubmitted("find-patient")
	m.ObserveTaskCompleted("find-patient", "ready", 120*time.Millisecond)
	m.ObserveTaskRetry("find-patient")
	m.ObserveDialogTurn("getting_name")
	m.ObserveDialogReset()
	m.ObserveBookingOutcome("SUCCESS")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksSubmitted.WithLabelValues("find-patient")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TasksCompleted.WithLabelValues("find-patient", "ready")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TaskRetries.WithLabelValues("find-patient")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DialogTurns.WithLabelValues("getting_name")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DialogResets))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BookingOutcomes.WithLabelValues("SUCCESS")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTaskSubmitted("x")
		m.ObserveTaskCompleted("x", "failed", time.Second)
		m.ObserveTaskRetry("x")
		m.ObserveDialogTurn("zero")
		m.ObserveDialogReset()
		m.ObserveBookingOutcome("APPOINT_TIME_IS_BUSY")
	})
}
