// Package observability exposes prometheus metrics for the transaction apply
// path.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Apply results recorded per transaction.
const (
	ResultCommitted = "committed"
	ResultInvalid   = "invalid"
	ResultInternal  = "internal"
)

// Metrics counts transaction outcomes and apply latency.
type Metrics struct {
	transactions *prometheus.CounterVec
	applySeconds prometheus.Histogram
}

// New registers the ledger metrics on reg. Pass prometheus.DefaultRegisterer
// in production; tests use a private registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aclchain",
			Name:      "transactions_total",
			Help:      "Transactions processed, by message type and outcome.",
		}, []string{"message_type", "result"}),
		applySeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aclchain",
			Name:      "apply_duration_seconds",
			Help:      "Wall time spent validating and committing one transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveApply records one transaction outcome.
func (m *Metrics) ObserveApply(messageType, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(messageType, result).Inc()
	m.applySeconds.Observe(elapsed.Seconds())
}
