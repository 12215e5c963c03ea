package server

import (
	"context"
	"net"
	"sort"
	"sync"

	"lavarush/server/internal/telemetry"
	"lavarush/server/logging"
	"lavarush/server/protocol"
)

// Hub owns the live session coordinators and the lobby registry, and fans
// broadcasts out to every active session.
type Hub struct {
	registry  *Registry
	logger    telemetry.Logger
	publisher logging.Publisher

	mu       sync.Mutex
	sessions map[string]*session
}

func NewHub(registry *Registry, logger telemetry.Logger, publisher logging.Publisher) *Hub {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Hub{
		registry:  registry,
		logger:    logger,
		publisher: publisher,
		sessions:  make(map[string]*session),
	}
}

// Registry exposes the lobby directory (diagnostics, tests).
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run accepts TCP connections until ctx is cancelled, one goroutine per
// accepted connection.
func (h *Hub) Run(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		sess := newSession(h, conn)
		go sess.run(ctx)
	}
}

// SessionCount reports the number of active sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// PlayerNames lists the identified players, sorted.
func (h *Hub) PlayerNames() []string {
	h.mu.Lock()
	names := make([]string, 0, len(h.sessions))
	for _, sess := range h.sessions {
		names = append(names, sess.name)
	}
	h.mu.Unlock()
	sort.Strings(names)
	return names
}

// add registers a session after a successful HELLO.
func (h *Hub) add(sess *session) {
	h.mu.Lock()
	h.sessions[sess.id] = sess
	h.mu.Unlock()
}

// drop removes a session and cleans up the lobbies it owned. Unlocked
// lobbies are simply unregistered; a locked lobby is a live game, so its
// ownership moves through the migration controller instead.
func (h *Hub) drop(sess *session, reason string) {
	h.mu.Lock()
	_, present := h.sessions[sess.id]
	delete(h.sessions, sess.id)
	h.mu.Unlock()
	if !present {
		return
	}

	h.publisher.Publish(context.Background(), logging.SessionClosed(sess.id, reason))
	h.broadcastLine(protocol.EncodeInfo(sess.name+" left"), sess.id)

	for _, lobby := range h.registry.OwnedBy(sess.id) {
		if lobby.Locked {
			h.migrateLobby(lobby, sess.id)
			continue
		}
		if h.registry.Unregister(lobby.ID) {
			h.publisher.Publish(context.Background(), logging.LobbyUnregistered(lobby.ID))
			h.broadcastLine(protocol.EncodeHostUnregistered(lobby.ID), sess.id)
		}
	}
}

// broadcastLine writes one line to every active session except the one
// identified by exceptID. Delivery is best-effort: a failed write is
// swallowed and never aborts delivery to the rest.
func (h *Hub) broadcastLine(line, exceptID string) {
	h.mu.Lock()
	targets := make([]*session, 0, len(h.sessions))
	for id, sess := range h.sessions {
		if id == exceptID {
			continue
		}
		targets = append(targets, sess)
	}
	h.mu.Unlock()

	for _, sess := range targets {
		sess.writeLine(line)
	}
}

// findSession resolves a session by ID; nil when gone.
func (h *Hub) findSession(id string) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[id]
}
