package websocket

import (
	"errors"
	"fmt"
)

var (
	ErrDecode             = errors.New("message decode failed")
	ErrNotObject          = errors.New("payload is not a JSON object")
	ErrClientDisconnected = errors.New("client disconnected")
	ErrSendBufferFull     = errors.New("send buffer full")
)

// ErrorType represents the categories of failures the relay records.
type ErrorType string

const (
	DecodeError     ErrorType = "decode"
	SendError       ErrorType = "send"
	ConnectionError ErrorType = "connection"
	PresenceError   ErrorType = "presence"
)

// classifySendError maps a peer send failure onto a short reason for logs.
func classifySendError(err error) string {
	switch {
	case errors.Is(err, ErrSendBufferFull):
		return "buffer_full"
	case errors.Is(err, ErrClientDisconnected):
		return "disconnected"
	default:
		return "write_failed"
	}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("peer send panicked: %v", e.value)
}
