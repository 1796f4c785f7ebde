package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationsWritten = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sectoken_notifications_written_total",
		Help: "Total number of notification upserts by type",
	},
	[]string{"type"},
)
