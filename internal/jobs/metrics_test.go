package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("planning:harvest_reminders").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("planning:harvest_reminders").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("planning:harvest_reminders", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("planning:harvest_reminders", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("planning:harvest_reminders")))
}

func TestCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.AddHarvestReminders("ready", 2)
	m.AddHarvestReminders("ready", 0)
	m.AddReceipt("billing")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reminders.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.receipts.WithLabelValues("billing")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddHarvestReminders("growing", 1)
		m.AddReceipt("broker")
		assert.NoError(t, m.Track("x").End(nil))
	})
}
