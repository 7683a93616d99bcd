package handlers

import (
	"log/slog"

	"global-chat/internal/websocket"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
)

type WSHandler struct {
	hub      *websocket.Hub
	upgrader *gorillaws.Upgrader
	log      *slog.Logger
}

func NewWSHandler(hub *websocket.Hub, upgrader *gorillaws.Upgrader, log *slog.Logger) *WSHandler {
	return &WSHandler{hub: hub, upgrader: upgrader, log: log}
}

// HandleWebSocket godoc
// @Summary WebSocket chat relay
// @Description Upgrade to a WebSocket. Every JSON object sent is relayed to all connected clients with a serverTimestamp; duplicates per (user, id) are dropped.
// @Tags websocket
// @Success 101 "Switching Protocols - WebSocket connection established"
// @Failure 400 {string} string "Not a WebSocket handshake"
// @Failure 429 {object} map[string]interface{} "Handshake rate limit exceeded"
// @Router /chat [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// The upgrader writes the HTTP error response itself on failure.
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "clientIP", c.ClientIP(), "error", err)
		return
	}

	h.hub.ServeConn(conn)
}
