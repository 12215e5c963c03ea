// Package net exposes the read-only diagnostics surface: health and stats
// endpoints plus a websocket feed that mirrors a locally hosted
// simulation's snapshots for observer tooling.
package net

import (
	"sync"

	"lavarush/server/protocol"
)

// SnapshotFeed republishes host snapshots to websocket spectators. Publish
// never blocks the simulation loop: a slow spectator just misses frames.
type SnapshotFeed struct {
	mu   sync.Mutex
	subs map[chan protocol.Snapshot]struct{}
}

func NewSnapshotFeed() *SnapshotFeed {
	return &SnapshotFeed{subs: make(map[chan protocol.Snapshot]struct{})}
}

// Publish hands one snapshot to every subscriber. Suitable as a
// server.HostConfig.OnSnapshot hook.
func (f *SnapshotFeed) Publish(snap protocol.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (f *SnapshotFeed) subscribe() chan protocol.Snapshot {
	ch := make(chan protocol.Snapshot, 4)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *SnapshotFeed) unsubscribe(ch chan protocol.Snapshot) {
	f.mu.Lock()
	delete(f.subs, ch)
	f.mu.Unlock()
}

func (f *SnapshotFeed) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
