package websocket

import (
	"log/slog"
	"time"
)

// Result is the outcome of routing one inbound payload.
type Result int

const (
	Forwarded Result = iota
	Duplicate
	DecodeFailed
)

func (r Result) String() string {
	switch r {
	case Forwarded:
		return "forwarded"
	case Duplicate:
		return "duplicate"
	case DecodeFailed:
		return "decode_failed"
	default:
		return "unknown"
	}
}

// Router decodes inbound messages, drops per-sender duplicates, stamps a
// server timestamp and fans the result out to every registered peer.
type Router struct {
	registry *Registry
	dedup    *DedupStore
	metrics  *Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewRouter(registry *Registry, dedup *DedupStore, metrics *Metrics, log *slog.Logger) *Router {
	return &Router{
		registry: registry,
		dedup:    dedup,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// Handle routes raw as received from origin. It never fails towards the
// caller: every non-forwarded outcome is logged and reported as a Result.
// origin may be nil when the payload did not come from a peer.
func (r *Router) Handle(raw []byte, origin Peer) Result {
	r.metrics.RecordReceived()
	originID := ""
	if origin != nil {
		originID = origin.ID()
	}

	msg, err := DecodeMessage(raw)
	if err != nil {
		r.metrics.RecordError(DecodeError)
		r.log.Error("Failed to decode message", "peerID", originID, "size", len(raw), "error", err)
		return DecodeFailed
	}

	if msg.Stamp(r.now()) {
		r.metrics.RecordStamped()
	}

	id, hasID := msg.ID()
	sender, hasSender := msg.Sender()
	if hasID && hasSender && r.dedup.Observe(sender, id) {
		r.metrics.RecordDuplicate()
		r.log.Info("Duplicate message detected, not forwarding",
			"peerID", originID, "sender", sender, "messageID", id)
		return Duplicate
	}

	encoded, err := msg.Encode()
	if err != nil {
		// Fields were decoded from valid JSON, so this only trips on a
		// corrupted raw field.
		r.metrics.RecordError(DecodeError)
		r.log.Error("Failed to encode message", "peerID", originID, "error", err)
		return DecodeFailed
	}

	start := time.Now()
	report := r.registry.Broadcast(encoded)
	r.metrics.RecordBroadcast(report, time.Since(start))

	r.log.Debug("Message broadcast",
		"peerID", originID,
		"messageID", id,
		"delivered", report.Delivered,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return Forwarded
}
