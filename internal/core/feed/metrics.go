package feed

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes engine counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	merges           *prometheus.CounterVec
	fetchFailures    *prometheus.CounterVec
	received         prometheus.Counter
	inserted         prometheus.Counter
	gaps             prometheus.Counter
	truncated        prometheus.Counter
	deleted          prometheus.Counter
	staleCompletions prometheus.Counter
	reconnectDelay   prometheus.Gauge
}

// NewMetrics registers the engine metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		merges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feed",
			Name:      "merges_total",
			Help:      "Merges applied to the entry store, by insertion point.",
		}, []string{"insertion"}),
		fetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feed",
			Name:      "fetch_failures_total",
			Help:      "Failed page fetches, by insertion point.",
		}, []string{"insertion"}),
		received: f.NewCounter(prometheus.CounterOpts{
			Namespace: "feed",
			Name:      "entries_received_total",
			Help:      "Entries delivered to merge, including duplicates.",
		}),
		inserted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "feed",
			Name:      "entries_inserted_total",
			Help:      "Entries that occupied a new slot.",
		}),
		gaps: f.NewCounter(prometheus.CounterOpts{
			Namespace: "feed",
			Name:      "gaps_inserted_total",
			Help:      "Gap markers inserted.",
		}),
		truncated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "feed",
			Name:      "entries_truncated_total",
			Help:      "Entries evicted from the tail.",
		}),
		deleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "feed",
			Name:      "entries_deleted_total",
			Help:      "Entries removed by delete events.",
		}),
		staleCompletions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "feed",
			Name:      "stale_completions_total",
			Help:      "Fetch completions dropped because their request was canceled.",
		}),
		reconnectDelay: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "feed",
			Name:      "reconnect_delay_seconds",
			Help:      "Delay before the most recent catch-up fetch.",
		}),
	}
}

func insertionLabel(at InsertionPoint) string {
	if at.Kind == InsertAtIndex {
		return "atIndex"
	}
	return at.String()
}

func (m *Metrics) observeMerge(at InsertionPoint, received, inserted int) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(insertionLabel(at)).Inc()
	m.received.Add(float64(received))
	m.inserted.Add(float64(inserted))
}

func (m *Metrics) observeGap() {
	if m == nil {
		return
	}
	m.gaps.Inc()
}

func (m *Metrics) observeTruncated(n int) {
	if m == nil {
		return
	}
	m.truncated.Add(float64(n))
}

func (m *Metrics) observeDeleted() {
	if m == nil {
		return
	}
	m.deleted.Inc()
}

func (m *Metrics) observeFetchFailure(at InsertionPoint) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(insertionLabel(at)).Inc()
}

func (m *Metrics) observeStaleCompletion() {
	if m == nil {
		return
	}
	m.staleCompletions.Inc()
}

func (m *Metrics) observeReconnectDelay(d time.Duration) {
	if m == nil {
		return
	}
	m.reconnectDelay.Set(d.Seconds())
}
