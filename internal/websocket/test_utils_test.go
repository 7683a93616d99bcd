package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var errMockSend = errors.New("mock send failure")

// mockPeer records every payload it is sent.
type mockPeer struct {
	id       string
	mu       sync.Mutex
	messages [][]byte
	closed   atomic.Bool
	failSend atomic.Bool
}

func newMockPeer() *mockPeer {
	return &mockPeer{id: uuid.New().String()}
}

func (m *mockPeer) ID() string { return m.id }

func (m *mockPeer) IsOpen() bool { return !m.closed.Load() }

func (m *mockPeer) Send(payload []byte) error {
	if m.failSend.Load() {
		return errMockSend
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, payload)
	return nil
}

func (m *mockPeer) close() { m.closed.Store(true) }

func (m *mockPeer) getMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]byte, len(m.messages))
	copy(result, m.messages)
	return result
}

// decoded returns the received payloads as generic JSON objects.
func (m *mockPeer) decoded() []map[string]any {
	var out []map[string]any
	for _, raw := range m.getMessages() {
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err == nil {
			out = append(out, obj)
		}
	}
	return out
}
