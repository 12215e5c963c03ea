// Package logging carries structured gameplay and lifecycle events from the
// lobby server and simulation host to pluggable sinks. Transport-level noise
// stays on the fallback standard logger; events are for things an operator
// or a replay tool would care about.
package logging

import (
	"context"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

type EntityKind string

const (
	EntityKindUnknown EntityKind = "unknown"
	EntityKindPlayer  EntityKind = "player"
	EntityKindLobby   EntityKind = "lobby"
	EntityKindSession EntityKind = "session"
	EntityKindWorld   EntityKind = "world"
)

// Event is a single structured record. Tick is zero for events outside a
// simulation loop (lobby traffic, session lifecycle).
type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

const (
	CategoryLobby      = "lobby"
	CategorySession    = "session"
	CategorySimulation = "simulation"
	CategoryMigration  = "migration"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// NopPublisher returns a publisher that discards everything. Used by tests
// and by hosts constructed without a router.
func NopPublisher() Publisher {
	return nopPublisher{}
}
