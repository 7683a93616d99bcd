package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// NewUpgrader returns an upgrader that accepts any origin when
// allowedOrigins is empty or contains "*", and otherwise only the listed
// origins plus local development hosts.
func NewUpgrader(allowedOrigins []string, bufferSize int) *websocket.Upgrader {
	if bufferSize <= 0 {
		bufferSize = 1024
	}

	origins := lo.FilterMap(allowedOrigins, func(o string, _ int) (string, bool) {
		o = strings.TrimSpace(o)
		return o, o != ""
	})
	allowAll := len(origins) == 0 || lo.Contains(origins, "*")

	return &websocket.Upgrader{
		ReadBufferSize:  bufferSize,
		WriteBufferSize: bufferSize,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" || lo.Contains(origins, origin) {
				return true
			}

			// For development/testing, allow any localhost variations
			return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
		},
	}
}
