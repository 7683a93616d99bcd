package websocket

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
)

// BroadcastReport summarises one fan-out.
type BroadcastReport struct {
	Delivered int
	Skipped   int
	Failed    int
}

// Registry tracks the set of open peers.
//
// The peer set is copy-on-write: writers build a new slice under mu and
// publish it atomically, so Broadcast iterates an immutable snapshot and
// never waits on Register or Unregister.
type Registry struct {
	mu    sync.Mutex
	peers atomic.Pointer[[]Peer]
	log   *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	r := &Registry{log: log}
	empty := make([]Peer, 0)
	r.peers.Store(&empty)
	return r
}

// Register adds peer to the open set. Registering a peer twice, or a peer
// that already reports closed, is a no-op.
func (r *Registry) Register(peer Peer) bool {
	if peer == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.peers.Load()
	if lo.Contains(current, peer) {
		return false
	}
	if !peer.IsOpen() {
		r.log.Debug("Skipping registration of closed peer", "peerID", peer.ID())
		return false
	}

	next := make([]Peer, len(current), len(current)+1)
	copy(next, current)
	next = append(next, peer)
	r.peers.Store(&next)

	r.log.Info("Peer registered", "peerID", peer.ID(), "peers", len(next))
	return true
}

// Unregister removes peer if present.
func (r *Registry) Unregister(peer Peer) bool {
	if peer == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.peers.Load()
	idx := lo.IndexOf(current, peer)
	if idx < 0 {
		return false
	}

	next := make([]Peer, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)
	r.peers.Store(&next)

	r.log.Info("Peer unregistered", "peerID", peer.ID(), "peers", len(next))
	return true
}

// Broadcast sends payload to every peer registered at call time that still
// reports open. Closed peers are skipped and stay registered until their
// transport unregisters them. A failing peer never stops delivery to others.
func (r *Registry) Broadcast(payload []byte) BroadcastReport {
	var report BroadcastReport

	for _, peer := range r.Snapshot() {
		if !peer.IsOpen() {
			report.Skipped++
			continue
		}
		if err := r.send(peer, payload); err != nil {
			report.Failed++
			r.log.Warn("Failed to deliver message",
				"peerID", peer.ID(), "reason", classifySendError(err), "error", err)
			continue
		}
		report.Delivered++
	}

	return report
}

// send isolates a single peer so that a panicking implementation cannot
// take down the broadcasting goroutine.
func (r *Registry) send(peer Peer, payload []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec}
		}
	}()
	return peer.Send(payload)
}

// Snapshot returns the peers registered at the time of the call.
func (r *Registry) Snapshot() []Peer {
	return *r.peers.Load()
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	return len(*r.peers.Load())
}

// IDs returns the identifiers of all registered peers.
func (r *Registry) IDs() []string {
	return lo.Map(r.Snapshot(), func(p Peer, _ int) string {
		return p.ID()
	})
}
