package websocket

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks relay activity. All methods are safe for concurrent use.
type Metrics struct {
	received      atomic.Int64
	forwarded     atomic.Int64
	duplicates    atomic.Int64
	stamped       atomic.Int64
	delivered     atomic.Int64
	skipped       atomic.Int64
	connections   atomic.Int64
	disconnects   atomic.Int64
	errorCounts   sync.Map // ErrorType -> *atomic.Int64
	startedAt     time.Time
	peakLock      sync.Mutex
	peakPeers     int
	peakBroadcast time.Duration
	lastBroadcast time.Time
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Received          int64               `json:"received"`
	Forwarded         int64               `json:"forwarded"`
	Duplicates        int64               `json:"duplicates"`
	Stamped           int64               `json:"stamped"`
	Delivered         int64               `json:"delivered"`
	Skipped           int64               `json:"skipped"`
	Connections       int64               `json:"connections"`
	Disconnects       int64               `json:"disconnects"`
	Errors            map[ErrorType]int64 `json:"errors"`
	PeakPeers         int                 `json:"peakPeers"`
	PeakBroadcastTime time.Duration       `json:"peakBroadcastTimeNs"`
	LastBroadcast     time.Time           `json:"lastBroadcast"`
	Uptime            time.Duration       `json:"uptimeNs"`
}

func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

func (m *Metrics) RecordReceived()  { m.received.Add(1) }
func (m *Metrics) RecordDuplicate() { m.duplicates.Add(1) }
func (m *Metrics) RecordStamped()   { m.stamped.Add(1) }

// RecordConnection counts a new peer and tracks the peak peer count.
func (m *Metrics) RecordConnection(peers int) {
	m.connections.Add(1)

	m.peakLock.Lock()
	if peers > m.peakPeers {
		m.peakPeers = peers
	}
	m.peakLock.Unlock()
}

func (m *Metrics) RecordDisconnect() { m.disconnects.Add(1) }

// RecordBroadcast folds one fan-out into the totals. Per-peer send failures
// are counted as SendError.
func (m *Metrics) RecordBroadcast(report BroadcastReport, took time.Duration) {
	m.forwarded.Add(1)
	m.delivered.Add(int64(report.Delivered))
	m.skipped.Add(int64(report.Skipped))
	if report.Failed > 0 {
		m.counter(SendError).Add(int64(report.Failed))
	}

	m.peakLock.Lock()
	if took > m.peakBroadcast {
		m.peakBroadcast = took
	}
	m.lastBroadcast = time.Now()
	m.peakLock.Unlock()
}

// RecordError increments the counter for errType.
func (m *Metrics) RecordError(errType ErrorType) {
	m.counter(errType).Add(1)
}

// ErrorCount returns the number of errors recorded for errType.
func (m *Metrics) ErrorCount(errType ErrorType) int64 {
	v, ok := m.errorCounts.Load(errType)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	errs := make(map[ErrorType]int64)
	m.errorCounts.Range(func(k, v any) bool {
		errs[k.(ErrorType)] = v.(*atomic.Int64).Load()
		return true
	})

	m.peakLock.Lock()
	peakPeers, peakBroadcast, last := m.peakPeers, m.peakBroadcast, m.lastBroadcast
	m.peakLock.Unlock()

	return MetricsSnapshot{
		Received:          m.received.Load(),
		Forwarded:         m.forwarded.Load(),
		Duplicates:        m.duplicates.Load(),
		Stamped:           m.stamped.Load(),
		Delivered:         m.delivered.Load(),
		Skipped:           m.skipped.Load(),
		Connections:       m.connections.Load(),
		Disconnects:       m.disconnects.Load(),
		Errors:            errs,
		PeakPeers:         peakPeers,
		PeakBroadcastTime: peakBroadcast,
		LastBroadcast:     last,
		Uptime:            time.Since(m.startedAt),
	}
}

func (m *Metrics) counter(errType ErrorType) *atomic.Int64 {
	if v, ok := m.errorCounts.Load(errType); ok {
		return v.(*atomic.Int64)
	}
	v, _ := m.errorCounts.LoadOrStore(errType, new(atomic.Int64))
	return v.(*atomic.Int64)
}
