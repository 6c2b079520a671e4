package api

import (
	"go.uber.org/zap"

	"elevator-status-monitor/internal/model"
	"elevator-status-monitor/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store          store.Store
	stations       []model.SearchGroup
	vapidPublicKey string
	log            *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, stations []model.SearchGroup, vapidPublicKey string, log *zap.Logger) *Handler {
	return &Handler{
		store:          s,
		stations:       stations,
		vapidPublicKey: vapidPublicKey,
		log:            log,
	}
}
