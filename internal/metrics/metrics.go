package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChecksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "elstatus_checks_total",
			Help: "Total number of status check runs",
		},
	)

	GroupResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elstatus_group_resolutions_total",
			Help: "Location group resolutions by outcome",
		},
		[]string{"outcome"},
	)

	APIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "elstatus_api_request_duration_seconds",
			Help:    "Duration of equipment API requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	EquipmentStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "elstatus_equipment",
			Help: "Number of resolved elevators by status",
		},
		[]string{"status"},
	)

	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elstatus_delivery_attempts_total",
			Help: "Display delivery attempts by result",
		},
		[]string{"result"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elstatus_notifications_sent_total",
			Help: "Notifications sent by channel and result",
		},
		[]string{"channel", "result"},
	)
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
