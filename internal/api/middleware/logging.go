package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// LogApi writes one access log line per request. WebSocket handshakes are
// tagged "ws"; a successful one is logged as 101 when the connection is
// handed to the hub.
func LogApi() gin.HandlerFunc {
	return gin.LoggerWithFormatter(accessLine)
}

func accessLine(param gin.LogFormatterParams) string {
	kind, status := "http", param.StatusCode
	if isUpgrade(param.Request) {
		kind = "ws"
		// A hijacked connection never reports its status to gin.
		if status == http.StatusOK {
			status = http.StatusSwitchingProtocols
		}
	}

	line := fmt.Sprintf("%s %-4s %3d %s %s %s ip=%s bytes=%d",
		param.TimeStamp.Format("2006-01-02 15:04:05"),
		kind,
		status,
		param.Method,
		param.Path,
		param.Latency,
		param.ClientIP,
		max(param.BodySize, 0),
	)
	if param.ErrorMessage != "" {
		line += " err=" + strings.TrimSpace(param.ErrorMessage)
	}
	return line + "\n"
}

func isUpgrade(r *http.Request) bool {
	return r != nil && strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
