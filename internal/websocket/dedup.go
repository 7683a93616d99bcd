package websocket

import (
	"sync"
)

// DefaultDedupCapacity is the number of message ids remembered per sender.
const DefaultDedupCapacity = 100

// DedupStore remembers recently seen message ids per sender.
//
// Each sender owns a bounded window guarded by its own lock, so senders never
// contend with each other. When a window grows past capacity it is cleared
// entirely; there is no recency tracking. Windows are created on first use
// and live for the lifetime of the store.
type DedupStore struct {
	capacity int
	senders  sync.Map // sender -> *senderWindow
}

type senderWindow struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupStore(capacity int) *DedupStore {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &DedupStore{capacity: capacity}
}

// Capacity returns the per-sender window size.
func (s *DedupStore) Capacity() int {
	return s.capacity
}

// HasSeen reports whether id is currently recorded for sender.
func (s *DedupStore) HasSeen(sender, id string) bool {
	w, ok := s.lookup(sender)
	if !ok {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, seen := w.seen[id]
	return seen
}

// MarkSeen records id for sender, clearing the sender's window if it
// overflows.
func (s *DedupStore) MarkSeen(sender, id string) {
	w := s.window(sender)

	w.mu.Lock()
	defer w.mu.Unlock()
	s.insertLocked(w, id)
}

// Observe atomically checks and records id for sender. It returns true when
// id was already recorded, in which case nothing changes.
func (s *DedupStore) Observe(sender, id string) (duplicate bool) {
	w := s.window(sender)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, seen := w.seen[id]; seen {
		return true
	}
	s.insertLocked(w, id)
	return false
}

// Len returns the number of ids currently recorded for sender.
func (s *DedupStore) Len(sender string) int {
	w, ok := s.lookup(sender)
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// Senders returns the number of distinct senders seen so far.
func (s *DedupStore) Senders() int {
	n := 0
	s.senders.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (s *DedupStore) insertLocked(w *senderWindow, id string) {
	w.seen[id] = struct{}{}
	if len(w.seen) > s.capacity {
		clear(w.seen)
	}
}

func (s *DedupStore) lookup(sender string) (*senderWindow, bool) {
	v, ok := s.senders.Load(sender)
	if !ok {
		return nil, false
	}
	return v.(*senderWindow), true
}

func (s *DedupStore) window(sender string) *senderWindow {
	if w, ok := s.lookup(sender); ok {
		return w
	}
	v, _ := s.senders.LoadOrStore(sender, &senderWindow{seen: make(map[string]struct{})})
	return v.(*senderWindow)
}
