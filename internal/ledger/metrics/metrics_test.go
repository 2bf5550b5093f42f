package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementEntries("add", 3)
	m.IncrementEntries("cancel", 0)
	m.IncrementSoftFailure("add", "unknown")
	m.ObserveLockWait(10 * time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.EntriesAppended.WithLabelValues("add")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.EntriesAppended.WithLabelValues("cancel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SoftFailures.WithLabelValues("add", "unknown")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementEntries("add", 1)
		m.IncrementSoftFailure("add", "external")
		m.ObserveLockWait(time.Second)
		m.ObserveBatch("edit", time.Second)
	})
}
