package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sectoken_rpc_requests_total",
		Help: "Total number of RPC requests by method",
	}, []string{"method"})

	rpcErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sectoken_rpc_errors_total",
		Help: "Total number of RPC errors by method and class",
	}, []string{"method", "class"})

	rpcRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sectoken_rpc_retries_total",
		Help: "Total number of RPC retry attempts by method",
	}, []string{"method"})

	rpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sectoken_rpc_request_duration_seconds",
		Help:    "Duration of RPC requests including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	rpcThrottleWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sectoken_rpc_throttle_wait_seconds",
		Help:    "Time spent waiting on the client side rate limiter",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)
