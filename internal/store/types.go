package store

import (
	"errors"
	"time"

	"elevator-status-monitor/internal/model"
)

// ErrNotFound is returned when a subscription endpoint is unknown.
var ErrNotFound = errors.New("not found")

// Snapshot is the outcome of one status check.
type Snapshot struct {
	RunID      string            `json:"run_id"`
	CheckedAt  time.Time         `json:"checked_at"`
	Equipments []model.Equipment `json:"equipments"`
	Errors     []string          `json:"errors"`
}

// Counts returns the number of broken, working and unknown elevators in the snapshot.
func (s Snapshot) Counts() (broken, working, unknown int) {
	return model.CountStatus(s.Equipments)
}

// Subscription is a browser push endpoint registered for alerts.
type Subscription = model.PushSubscription
