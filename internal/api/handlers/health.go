package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jstittsworth/bracket-optimizer/internal/services"
	"github.com/jstittsworth/bracket-optimizer/pkg/database"
)

type HealthHandler struct {
	db    *database.DB
	cache *services.CacheService
	hub   *services.WebSocketHub
}

func NewHealthHandler(db *database.DB, cache *services.CacheService, hub *services.WebSocketHub) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, hub: hub}
}

// GetHealth reports the database and cache state. A cache outage degrades
// the service but does not fail the check.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	dbStatus := "ok"
	if sqlDB, err := h.db.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "unreachable"
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	cacheStatus := h.cache.State()
	if err := h.cache.Ping(ctx); err != nil {
		cacheStatus = "unreachable"
		if code == http.StatusOK {
			status = "degraded"
		}
	}

	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}

	c.JSON(code, gin.H{
		"status":            status,
		"database":          dbStatus,
		"cache":             cacheStatus,
		"websocket_clients": clients,
		"time":              time.Now().UTC(),
	})
}
