package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db        Pinger
	generator map[string]interface{}
	logger    *zap.Logger
}

// NewHealthHandler reports database reachability and, when generator is non-nil,
// the configured AI model.
func NewHealthHandler(db Pinger, generator map[string]interface{}, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, generator: generator, logger: logger}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"status": "ok", "database": "ok"}
	if h.generator != nil {
		body["generator"] = h.generator
	}

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error("Health check failed", zap.Error(err))
		body["status"] = "degraded"
		body["database"] = "unreachable"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	c.JSON(http.StatusOK, body)
}
