package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// StoreMutations counts mutating store operations by store, operation and result.
var StoreMutations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "quicktrade",
		Subsystem: "store",
		Name:      "mutations_total",
		Help:      "Total number of store mutations",
	},
	[]string{"store", "op", "result"},
)

// StoreReloads counts reloads of a store from disk.
var StoreReloads = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "quicktrade",
		Subsystem: "store",
		Name:      "reloads_total",
		Help:      "Total number of store reloads from disk",
	},
	[]string{"store", "result"},
)

// PriceLookups counts price lookups by outcome (hit, miss, error, skipped).
var PriceLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "quicktrade",
		Subsystem: "pricing",
		Name:      "lookups_total",
		Help:      "Total number of price lookups by outcome",
	},
	[]string{"outcome"},
)

// UpstreamLatency tracks price provider latency in seconds.
var UpstreamLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "quicktrade",
		Subsystem: "pricing",
		Name:      "upstream_latency_seconds",
		Help:      "Latency of price provider requests",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
)

// OrdersSubmitted counts simulated orders by exchange, side and result.
var OrdersSubmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "quicktrade",
		Subsystem: "trading",
		Name:      "orders_total",
		Help:      "Total number of simulated orders",
	},
	[]string{"exchange", "side", "result"},
)

// FeedClients is the number of connected change-feed clients.
var FeedClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "quicktrade",
		Subsystem: "feed",
		Name:      "clients",
		Help:      "Number of connected change feed clients",
	},
)

// ObserveMutation records one store mutation.
func ObserveMutation(store, op string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	StoreMutations.WithLabelValues(store, op, result).Inc()
}
