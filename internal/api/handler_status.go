package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"elevator-status-monitor/internal/model"
)

type statusSummary struct {
	Broken  int `json:"broken"`
	Working int `json:"working"`
	Unknown int `json:"unknown"`
}

// statusResponse is the flattened structure for GET /api/status.
type statusResponse struct {
	RunID      string            `json:"run_id"`
	CheckedAt  time.Time         `json:"checked_at"`
	Summary    statusSummary     `json:"summary"`
	Equipments []model.Equipment `json:"equipments"`
	Errors     []string          `json:"errors"`
}

// GetStatus handles the GET /api/status request. With ?broken=true only elevators
// that are not known to be working are listed.
func (h *Handler) GetStatus(c *gin.Context) {
	snapshot, ok := h.store.LatestSnapshot(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "no status check has completed yet"})
		return
	}

	broken, working, unknown := snapshot.Counts()
	equipments := snapshot.Equipments
	if c.Query("broken") == "true" {
		equipments = make([]model.Equipment, 0, broken+unknown)
		for _, e := range snapshot.Equipments {
			if !e.IsWorking() {
				equipments = append(equipments, e)
			}
		}
	}
	if equipments == nil {
		equipments = []model.Equipment{}
	}
	errs := snapshot.Errors
	if errs == nil {
		errs = []string{}
	}

	c.JSON(http.StatusOK, statusResponse{
		RunID:      snapshot.RunID,
		CheckedAt:  snapshot.CheckedAt,
		Summary:    statusSummary{Broken: broken, Working: working, Unknown: unknown},
		Equipments: equipments,
		Errors:     errs,
	})
}

// GetStations handles the GET /api/stations request.
func (h *Handler) GetStations(c *gin.Context) {
	stations := h.stations
	if stations == nil {
		stations = []model.SearchGroup{}
	}
	c.JSON(http.StatusOK, stations)
}

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.vapidPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.vapidPublicKey})
}

// Healthz reports liveness and whether a check has completed.
func (h *Handler) Healthz(c *gin.Context) {
	_, ready := h.store.LatestSnapshot(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ready": ready, "generation": h.store.Generation()})
}
