package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Indexing metrics
	checkpointBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sectoken_checkpoint_block",
			Help: "Latest fully processed block per watcher",
		},
		[]string{"watcher"},
	)

	blocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sectoken_blocks_processed_total",
			Help: "Total number of blocks processed",
		},
		[]string{"kind"},
	)

	logsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sectoken_logs_indexed_total",
			Help: "Total number of logs indexed",
		},
		[]string{"kind"},
	)

	logsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sectoken_logs_skipped_total",
			Help: "Total number of logs dropped by the decoder",
		},
		[]string{"kind"},
	)

	rangeProcessingTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sectoken_range_processing_duration_seconds",
			Help:    "Time taken to fetch, decode and commit one block range",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	headBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sectoken_head_block",
			Help: "Head block observed by the last pass",
		},
	)

	// Mainloop metrics
	passes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sectoken_passes_total",
			Help: "Total number of synchronization passes by outcome",
		},
		[]string{"outcome"},
	)

	watcherFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sectoken_watcher_failures_total",
			Help: "Total number of failed watcher syncs by class",
		},
		[]string{"class"},
	)

	syncedNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sectoken_synced_nodes",
			Help: "Number of nodes currently marked as synced",
		},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sectoken_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sectoken_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sectoken_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sectoken_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func CheckpointSet(watcher string, blockNum uint64) {
	checkpointBlock.WithLabelValues(watcher).Set(float64(blockNum))
}

func BlocksProcessedInc(kind string, count uint64) {
	blocksProcessed.WithLabelValues(kind).Add(float64(count))
}

func LogsIndexedInc(kind string, count int) {
	logsIndexed.WithLabelValues(kind).Add(float64(count))
}

func LogsSkippedInc(kind string) {
	logsSkipped.WithLabelValues(kind).Inc()
}

func RangeProcessingTimeLog(kind string, duration time.Duration) {
	rangeProcessingTime.WithLabelValues(kind).Observe(duration.Seconds())
}

func HeadBlockSet(blockNum uint64) {
	headBlock.Set(float64(blockNum))
}

// PassInc counts a pass. Outcome is one of ok, skipped, degraded or failed.
func PassInc(outcome string) {
	passes.WithLabelValues(outcome).Inc()
}

// WatcherFailureInc counts a failed watcher sync. Class is unavailable or fatal.
func WatcherFailureInc(class string) {
	watcherFailures.WithLabelValues(class).Inc()
}

func SyncedNodesSet(count int) {
	syncedNodes.Set(float64(count))
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics updates runtime system metrics.
// This should be called periodically (e.g., every 15 seconds).
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
