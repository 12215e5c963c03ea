// Package telemetry provides the logger indirection and the atomic counters
// shared by the lobby server and simulation host.
package telemetry

import (
	"log"
	"sync/atomic"
	"time"
)

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// Recorder is the counter surface the host reports into. A nil *Counters is
// a valid no-op Recorder.
type Recorder interface {
	RecordDatagram(bytes int)
	RecordDrop()
	RecordBroadcast(bytes, players int)
	RecordTickDuration(d time.Duration)
}

// Counters accumulates host activity on atomics so the diagnostics endpoint
// can read them without locking.
type Counters struct {
	datagramsReceived  atomic.Uint64
	datagramsDropped   atomic.Uint64
	bytesReceived      atomic.Uint64
	snapshotsSent      atomic.Uint64
	bytesSent          atomic.Uint64
	lastPlayerCount    atomic.Uint64
	tickDurationMillis atomic.Int64
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) RecordDatagram(bytes int) {
	if c == nil || bytes < 0 {
		return
	}
	c.datagramsReceived.Add(1)
	c.bytesReceived.Add(uint64(bytes))
}

func (c *Counters) RecordDrop() {
	if c == nil {
		return
	}
	c.datagramsDropped.Add(1)
}

func (c *Counters) RecordBroadcast(bytes, players int) {
	if c == nil {
		return
	}
	if bytes < 0 {
		bytes = 0
	}
	if players < 0 {
		players = 0
	}
	c.snapshotsSent.Add(1)
	c.bytesSent.Add(uint64(bytes))
	c.lastPlayerCount.Store(uint64(players))
}

func (c *Counters) RecordTickDuration(d time.Duration) {
	if c == nil {
		return
	}
	millis := d.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	c.tickDurationMillis.Store(millis)
}

// Snapshot is a point-in-time copy for the diagnostics payload.
type Snapshot struct {
	DatagramsReceived  uint64 `json:"datagramsReceived"`
	DatagramsDropped   uint64 `json:"datagramsDropped"`
	BytesReceived      uint64 `json:"bytesReceived"`
	SnapshotsSent      uint64 `json:"snapshotsSent"`
	BytesSent          uint64 `json:"bytesSent"`
	LastPlayerCount    uint64 `json:"lastPlayerCount"`
	TickDurationMillis int64  `json:"tickDurationMillis"`
}

func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		DatagramsReceived:  c.datagramsReceived.Load(),
		DatagramsDropped:   c.datagramsDropped.Load(),
		BytesReceived:      c.bytesReceived.Load(),
		SnapshotsSent:      c.snapshotsSent.Load(),
		BytesSent:          c.bytesSent.Load(),
		LastPlayerCount:    c.lastPlayerCount.Load(),
		TickDurationMillis: c.tickDurationMillis.Load(),
	}
}
