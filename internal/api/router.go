package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"elevator-status-monitor/config"
	"elevator-status-monitor/internal/mw"
	"elevator-status-monitor/internal/store"
)

// NewRouter creates and configures the status API router.
func NewRouter(cfg *config.Config, s store.Store, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(mw.Logger(log), gin.Recovery())

	handler := NewHandler(s, cfg.Stations, cfg.Push.PublicKey, log)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst, cfg.Server.RequestIPHeader)

	// Entries are keyed by snapshot generation, so a new check invalidates them.
	ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl, s.Generation)

	r.GET("/healthz", handler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/status", caching, handler.GetStatus)
		api.GET("/stations", caching, handler.GetStations)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
