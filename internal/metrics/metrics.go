// Package metrics keeps lock-free counters for an IRC session: traffic
// volume, line and message throughput, and failure counts.
//
// All methods are safe for concurrent use. A nil *Collector is a valid
// no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one session.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	linesIn           atomic.Int64
	linesOut          atomic.Int64
	dispatched        atomic.Int64
	dropped           atomic.Int64
	overflows         atomic.Int64
	reconnects        atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	registeredAt time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection ───────────────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// Registered records the time the server accepted registration.
func (c *Collector) Registered() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.registeredAt = time.Now()
	c.mu.Unlock()
}

// Reconnect records a reconnection attempt.
func (c *Collector) Reconnect() {
	if c == nil {
		return
	}
	c.reconnects.Add(1)
}

// Reconnects returns the number of reconnection attempts.
func (c *Collector) Reconnects() int64 {
	if c == nil {
		return 0
	}
	return c.reconnects.Load()
}

// ── Traffic ──────────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// LineReceived counts one framed inbound line.
func (c *Collector) LineReceived() {
	if c == nil {
		return
	}
	c.linesIn.Add(1)
}

// LineSent counts one outbound line.
func (c *Collector) LineSent() {
	if c == nil {
		return
	}
	c.linesOut.Add(1)
}

// MessageDispatched counts one typed message delivered to listeners.
func (c *Collector) MessageDispatched() {
	if c == nil {
		return
	}
	c.dispatched.Add(1)
}

// LineDropped counts one inbound line with an unrecognised command.
func (c *Collector) LineDropped() {
	if c == nil {
		return
	}
	c.dropped.Add(1)
}

// FrameOverflow counts one discarded oversized remainder.
func (c *Collector) FrameOverflow() {
	if c == nil {
		return
	}
	c.overflows.Add(1)
}

// LinesIn returns the number of framed inbound lines.
func (c *Collector) LinesIn() int64 {
	if c == nil {
		return 0
	}
	return c.linesIn.Load()
}

// Dispatched returns the number of typed messages delivered.
func (c *Collector) Dispatched() int64 {
	if c == nil {
		return 0
	}
	return c.dispatched.Load()
}

// Dropped returns the number of unrecognised lines.
func (c *Collector) Dropped() int64 {
	if c == nil {
		return 0
	}
	return c.dropped.Load()
}

// Overflows returns the number of frame overflows.
func (c *Collector) Overflows() int64 {
	if c == nil {
		return 0
	}
	return c.overflows.Load()
}

// ── Errors ───────────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	Reconnects        int64  `json:"reconnects"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	LinesIn           int64  `json:"lines_in"`
	LinesOut          int64  `json:"lines_out"`
	Dispatched        int64  `json:"messages_dispatched"`
	Dropped           int64  `json:"lines_dropped"`
	FrameOverflows    int64  `json:"frame_overflows"`
	ErrorsTotal       int64  `json:"errors_total"`
	RegisteredAt      string `json:"registered_at,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		Reconnects:        c.reconnects.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		LinesIn:           c.linesIn.Load(),
		LinesOut:          c.linesOut.Load(),
		Dispatched:        c.dispatched.Load(),
		Dropped:           c.dropped.Load(),
		FrameOverflows:    c.overflows.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.registeredAt.IsZero() {
		s.RegisteredAt = c.registeredAt.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
