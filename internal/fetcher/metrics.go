package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	logsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sectoken_fetched_logs_total",
			Help: "Total number of logs fetched from RPC by event",
		},
		[]string{"event"},
	)

	rangeSplits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sectoken_log_range_splits_total",
			Help: "Total number of block ranges split after a too many results error",
		},
	)
)
