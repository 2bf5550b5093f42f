package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	EntriesAppended *prometheus.CounterVec
	SoftFailures    *prometheus.CounterVec
	LockWait        prometheus.Histogram
	BatchDuration   *prometheus.HistogramVec
}

// New registers the ledger collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EntriesAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "las_ledger_entries_appended_total",
			Help: "Ledger entries appended, by operation",
		}, []string{"operation"}),
		SoftFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "las_ledger_soft_failures_total",
			Help: "Batch items answered with success=false, by operation and strategy",
		}, []string{"operation", "strategy"}),
		LockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "las_ledger_lock_wait_seconds",
			Help:    "Time spent waiting for a lineage lock",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		BatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "las_ledger_batch_duration_seconds",
			Help:    "Duration of a locked add/cancel/edit batch",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementEntries(operation string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EntriesAppended.WithLabelValues(operation).Add(float64(n))
}

func (m *Metrics) IncrementSoftFailure(operation, strategy string) {
	if m == nil {
		return
	}
	m.SoftFailures.WithLabelValues(operation, strategy).Inc()
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.Observe(d.Seconds())
}

func (m *Metrics) ObserveBatch(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.WithLabelValues(operation).Observe(d.Seconds())
}
