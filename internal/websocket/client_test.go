package websocket

import (
	"context"
	"testing"
	"time"

	"global-chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(HubOptions{}, nil, logger.Discard())
}

func TestClientOptions_Defaults(t *testing.T) {
	opts := ClientOptions{}.withDefaults()

	assert.Equal(t, 10*time.Second, opts.WriteWait)
	assert.Equal(t, 120*time.Second, opts.PongWait)
	assert.Equal(t, int64(512*1024), opts.MaxMessageSize)
	assert.Equal(t, 256, opts.SendBuffer)
	assert.Less(t, opts.pingPeriod(), opts.PongWait)
}

func TestClient_SendQueuesUntilBufferFull(t *testing.T) {
	client := NewClient(newTestHub(), nil, ClientOptions{SendBuffer: 2})

	assert.True(t, client.IsOpen())
	assert.NoError(t, client.Send([]byte("1")))
	assert.NoError(t, client.Send([]byte("2")))

	// A slow consumer is cut off
	assert.ErrorIs(t, client.Send([]byte("3")), ErrSendBufferFull)
	assert.False(t, client.IsOpen())
	assert.ErrorIs(t, client.Send([]byte("4")), ErrClientDisconnected)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	client := NewClient(newTestHub(), nil, ClientOptions{})

	client.Close()
	client.Close()

	assert.False(t, client.IsOpen())
	assert.ErrorIs(t, client.Send([]byte("x")), ErrClientDisconnected)
	assert.NotEmpty(t, client.ID())
}

func TestClient_UniqueIDs(t *testing.T) {
	hub := newTestHub()
	a := NewClient(hub, nil, ClientOptions{})
	b := NewClient(hub, nil, ClientOptions{})

	assert.NotEqual(t, a.ID(), b.ID())
}

func TestClient_WaitFollowsContext(t *testing.T) {
	client := NewClient(newTestHub(), nil, ClientOptions{})
	client.wg.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.False(t, client.Wait(ctx))

	client.wg.Done()
	assert.True(t, client.Wait(context.Background()))
}

// stuckClient adds a client to hub whose pumps finish only when release is
// called.
func stuckClient(t *testing.T, hub *Hub) (release func()) {
	t.Helper()
	client := NewClient(hub, nil, ClientOptions{})
	client.wg.Add(1)

	hub.clientsMu.Lock()
	hub.clients[client] = struct{}{}
	hub.clientsMu.Unlock()

	return client.wg.Done
}

func TestHub_StopHonoursContextDeadline(t *testing.T) {
	hub := newTestHub()

	// One client finishes late, another never does before the deadline
	late := stuckClient(t, hub)
	stuck := stuckClient(t, hub)
	defer stuck()
	timer := time.AfterFunc(250*time.Millisecond, late)
	defer timer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	hub.Stop(ctx)
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, 250*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond, "Stop overran its context deadline")
	for c := range hub.clients {
		assert.False(t, c.IsOpen())
	}
}
