// Package metrics provides lightweight counters for tracking the
// runtime statistics of a single route.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks per-route byte counts and error events.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	bytesToNet   atomic.Int64 // serial → network direction
	bytesFromNet atomic.Int64 // network → serial direction
	errorsTotal  atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── I/O metrics ──────────────────────────────────────────────────────

// AddToNet records n bytes forwarded from the serial port to the
// network peer.
func (c *Collector) AddToNet(n int64) {
	if c == nil {
		return
	}
	c.bytesToNet.Add(n)
}

// AddFromNet records n bytes forwarded from the network peer to the
// serial port.
func (c *Collector) AddFromNet(n int64) {
	if c == nil {
		return
	}
	c.bytesFromNet.Add(n)
}

// BytesToNet returns total bytes forwarded serial → network.
func (c *Collector) BytesToNet() int64 {
	if c == nil {
		return 0
	}
	return c.bytesToNet.Load()
}

// BytesFromNet returns total bytes forwarded network → serial.
func (c *Collector) BytesFromNet() int64 {
	if c == nil {
		return 0
	}
	return c.bytesFromNet.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

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
	Uptime           string `json:"uptime"`
	BytesToNet       int64  `json:"bytes_to_net"`
	BytesFromNet     int64  `json:"bytes_from_net"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:       time.Since(c.startTime).Truncate(time.Second).String(),
		BytesToNet:   c.bytesToNet.Load(),
		BytesFromNet: c.bytesFromNet.Load(),
		ErrorsTotal:  c.errorsTotal.Load(),
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
