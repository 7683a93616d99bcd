package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// PresenceTracker mirrors connected peers into an external store. It is
// optional; a nil tracker disables mirroring.
type PresenceTracker interface {
	SetPeerOnline(ctx context.Context, peerID string) error
	SetPeerOffline(ctx context.Context, peerID string) error
}

const defaultStopTimeout = 5 * time.Second

// HubOptions configure a Hub.
type HubOptions struct {
	DedupCapacity   int
	Client          ClientOptions
	PresenceTimeout time.Duration
}

// Hub owns the relay state for one server process: the peer registry, the
// per-sender dedup windows and the router tying them together.
type Hub struct {
	registry *Registry
	dedup    *DedupStore
	router   *Router
	metrics  *Metrics
	presence PresenceTracker
	opts     HubOptions
	log      *slog.Logger

	clientsMu sync.Mutex
	clients   map[*Client]struct{}
	stopped   bool
}

func NewHub(opts HubOptions, presence PresenceTracker, log *slog.Logger) *Hub {
	if opts.PresenceTimeout <= 0 {
		opts.PresenceTimeout = 2 * time.Second
	}

	registry := NewRegistry(log)
	dedup := NewDedupStore(opts.DedupCapacity)
	metrics := NewMetrics()

	return &Hub{
		registry: registry,
		dedup:    dedup,
		router:   NewRouter(registry, dedup, metrics, log),
		metrics:  metrics,
		presence: presence,
		opts:     opts,
		log:      log,
		clients:  make(map[*Client]struct{}),
	}
}

func (h *Hub) Registry() *Registry { return h.registry }
func (h *Hub) Dedup() *DedupStore  { return h.dedup }
func (h *Hub) Router() *Router     { return h.router }
func (h *Hub) Metrics() *Metrics   { return h.metrics }

// ServeConn takes ownership of an upgraded connection: it registers a new
// client and starts its pumps. It returns nil once the hub is stopped.
func (h *Hub) ServeConn(conn *websocket.Conn) *Client {
	client := NewClient(h, conn, h.opts.Client)

	h.clientsMu.Lock()
	if h.stopped {
		h.clientsMu.Unlock()
		h.log.Warn("Rejecting connection, hub stopped", "remote", conn.RemoteAddr().String())
		client.Close()
		conn.Close()
		return nil
	}
	h.clients[client] = struct{}{}
	h.clientsMu.Unlock()

	h.registry.Register(client)
	h.metrics.RecordConnection(h.registry.Len())
	h.log.Info("New WebSocket connection established",
		"clientID", client.id, "remote", conn.RemoteAddr().String())
	h.updatePresence(client.id, true)

	client.start()
	return client
}

// disconnect is the close notification from a client's read pump.
func (h *Hub) disconnect(c *Client) {
	h.clientsMu.Lock()
	_, known := h.clients[c]
	delete(h.clients, c)
	h.clientsMu.Unlock()
	if !known {
		return
	}

	h.registry.Unregister(c)
	h.metrics.RecordDisconnect()
	h.log.Info("Connection closed", "clientID", c.id)
	h.updatePresence(c.id, false)
}

func (h *Hub) updatePresence(peerID string, online bool) {
	if h.presence == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.PresenceTimeout)
	defer cancel()

	var err error
	if online {
		err = h.presence.SetPeerOnline(ctx, peerID)
	} else {
		err = h.presence.SetPeerOffline(ctx, peerID)
	}
	if err != nil {
		h.metrics.RecordError(PresenceError)
		h.log.Error("Failed to update presence", "peerID", peerID, "online", online, "error", err)
	}
}

// Stop closes every client and waits for their pumps until ctx is done. A ctx
// without a deadline is bounded by a default timeout.
func (h *Hub) Stop(ctx context.Context) {
	h.clientsMu.Lock()
	if h.stopped {
		h.clientsMu.Unlock()
		return
	}
	h.stopped = true
	clients := lo.Keys(h.clients)
	h.clientsMu.Unlock()

	h.log.Info("WebSocket hub shutting down", "clients", len(clients))

	for _, c := range clients {
		c.Close()
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultStopTimeout)
		defer cancel()
	}
	for _, c := range clients {
		if !c.Wait(ctx) {
			h.log.Warn("Hub stopped before all clients finished", "clients", len(clients))
			return
		}
	}
}

// Stats is the externally visible state of the hub.
type Stats struct {
	Peers         int             `json:"peers"`
	Senders       int             `json:"senders"`
	DedupCapacity int             `json:"dedupCapacity"`
	Metrics       MetricsSnapshot `json:"metrics"`
}

func (h *Hub) Stats() Stats {
	return Stats{
		Peers:         h.registry.Len(),
		Senders:       h.dedup.Senders(),
		DedupCapacity: h.dedup.Capacity(),
		Metrics:       h.metrics.Snapshot(),
	}
}
