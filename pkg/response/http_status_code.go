package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess     = 2000 // Success
	CodeUnavailable = 5003 // Dependency unavailable
)

// message
var msg = map[int]string{
	CodeSuccess:     "success",
	CodeUnavailable: "service unavailable",
}

// Body is the envelope returned by the JSON API.
type Body struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Message(code int) string {
	if m, ok := msg[code]; ok {
		return m
	}
	return "unknown"
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Code: CodeSuccess, Message: Message(CodeSuccess), Data: data})
}

func Unavailable(c *gin.Context, data interface{}) {
	c.JSON(http.StatusServiceUnavailable, Body{Code: CodeUnavailable, Message: Message(CodeUnavailable), Data: data})
}
