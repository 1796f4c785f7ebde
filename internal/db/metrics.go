package db

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	maintenanceRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sectoken_maintenance_runs_total",
		Help: "Total number of maintenance operations",
	})

	maintenanceOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sectoken_maintenance_outcomes_total",
		Help: "Total number of maintenance operations by outcome",
	}, []string{"status"})

	maintenanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sectoken_maintenance_duration_seconds",
		Help:    "Duration of maintenance operations",
		Buckets: prometheus.DefBuckets,
	})

	maintenanceLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sectoken_maintenance_last_run_timestamp",
		Help: "Unix timestamp of last maintenance run",
	})

	dbSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sectoken_db_size_bytes",
		Help: "Database file size in bytes, WAL and SHM included",
	})
)
