package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const dbPingTimeout = 2 * time.Second

// Pinger is the database liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db     Pinger // nil for the in-memory store
	driver string
}

func NewHealthHandler(db Pinger, driver string) *HealthHandler {
	return &HealthHandler{db: db, driver: driver}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) HealthDB(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": h.driver})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbPingTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		log.WithError(err).Warn("database health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": h.driver})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": h.driver})
}
