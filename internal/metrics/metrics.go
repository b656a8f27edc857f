package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation outcome labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Registry holds the engine's collectors on a private prometheus registry.
// A nil *Registry is valid and records nothing.
type Registry struct {
	registry *prometheus.Registry

	OperationsTotal     *prometheus.CounterVec
	TransactionsOpen    prometheus.Gauge
	TransactionDepth    prometheus.Histogram
	CommitKeysTotal     *prometheus.CounterVec
	SessionsActive      prometheus.Gauge
	SessionsReapedTotal prometheus.Counter
}

func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	f := promauto.With(r.registry)

	r.OperationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txkv_operations_total",
			Help: "Total number of engine operations",
		},
		[]string{"op", "status"},
	)
	r.TransactionsOpen = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "txkv_transactions_open",
			Help: "Number of open transaction levels across all sessions",
		},
	)
	r.TransactionDepth = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "txkv_transaction_depth",
			Help:    "Stack depth reached by BEGIN",
			Buckets: []float64{1, 2, 3, 5, 8, 13},
		},
	)
	r.CommitKeysTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txkv_commit_keys_total",
			Help: "Keys written or removed by commit merges",
		},
		[]string{"kind"}, // written, removed
	)
	r.SessionsActive = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "txkv_sessions_active",
			Help: "Number of open sessions",
		},
	)
	r.SessionsReapedTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "txkv_sessions_reaped_total",
			Help: "Sessions closed after sitting idle",
		},
	)
	return r
}

// TrackStoreSize exposes the live entry count of a store as a gauge.
func (r *Registry) TrackStoreSize(size func() int) {
	if r == nil {
		return
	}
	promauto.With(r.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "txkv_store_keys",
			Help: "Number of keys in the shared store",
		},
		func() float64 { return float64(size()) },
	)
}

// Inc records one operation with its outcome.
func (r *Registry) Inc(op string, err error) {
	if r == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	r.OperationsTotal.WithLabelValues(op, status).Inc()
}

// TxnBegun records a push to depth.
func (r *Registry) TxnBegun(depth int) {
	if r == nil {
		return
	}
	r.TransactionsOpen.Inc()
	r.TransactionDepth.Observe(float64(depth))
}

// TxnEnded records levels popped by commit, rollback or session close.
func (r *Registry) TxnEnded(levels int) {
	if r == nil || levels == 0 {
		return
	}
	r.TransactionsOpen.Sub(float64(levels))
}

// CommitMerged records the outcome of one commit merge.
func (r *Registry) CommitMerged(written, removed int) {
	if r == nil {
		return
	}
	r.CommitKeysTotal.WithLabelValues("written").Add(float64(written))
	r.CommitKeysTotal.WithLabelValues("removed").Add(float64(removed))
}

func (r *Registry) SessionOpened() {
	if r == nil {
		return
	}
	r.SessionsActive.Inc()
}

func (r *Registry) SessionClosed() {
	if r == nil {
		return
	}
	r.SessionsActive.Dec()
}

func (r *Registry) SessionReaped() {
	if r == nil {
		return
	}
	r.SessionsReapedTotal.Inc()
}

// Handler exposes all metrics in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
