package handlers

import (
	"context"
	"time"

	"global-chat/internal/websocket"
	"global-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

// Pinger is an optional dependency probed by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	hub   *websocket.Hub
	redis Pinger
}

// NewHealthHandler builds the health and stats handler. redis may be nil.
func NewHealthHandler(hub *websocket.Hub, redis Pinger) *HealthHandler {
	return &HealthHandler{hub: hub, redis: redis}
}

func (h *HealthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
}

// Health godoc
// @Summary Health check
// @Description Reports whether the relay and its optional Redis mirror are up
// @Tags system
// @Produce json
// @Success 200 {object} response.Body
// @Failure 503 {object} response.Body
// @Router /api/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	status := gin.H{
		"status": "UP",
		"peers":  h.hub.Registry().Len(),
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.redis.Ping(ctx); err != nil {
			status["status"] = "DEGRADED"
			status["redis"] = err.Error()
			response.Unavailable(c, status)
			return
		}
		status["redis"] = "UP"
	}

	response.Success(c, status)
}

// Stats godoc
// @Summary Relay statistics
// @Description Connected peers, dedup senders and relay counters
// @Tags system
// @Produce json
// @Success 200 {object} response.Body
// @Router /api/stats [get]
func (h *HealthHandler) Stats(c *gin.Context) {
	response.Success(c, h.hub.Stats())
}
