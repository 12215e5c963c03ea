package server

import (
	"context"

	"lavarush/server/logging"
	"lavarush/server/protocol"
)

// migrateLobby re-parents a locked lobby after its owning session closed.
// Successor policy: the next enumerated still-connected member, no fairness
// or RTT weighting. The successor's client rebuilds the simulation host
// from its own last received snapshot; nothing is handed over by reference.
func (h *Hub) migrateLobby(lobby Lobby, departedID string) {
	successor := h.pickSuccessor(lobby, departedID)
	if successor == nil {
		// Nobody left to host; the session dies with its owner.
		if h.registry.Unregister(lobby.ID) {
			h.publisher.Publish(context.Background(), logging.MigrationFailed(lobby.ID, "no remaining members"))
			h.broadcastLine(protocol.EncodeHostUnregistered(lobby.ID), departedID)
		}
		return
	}

	// The new host is assumed to bind the same UDP port as the old one; a
	// HOST_MIGRATE command from the new owner corrects the record if not.
	ip := remoteIP(successor.conn)
	port := lobby.UDPPort
	h.registry.Reassign(lobby.ID, successor.id, ip, port)

	h.publisher.Publish(context.Background(), logging.MigrationStarted(lobby.ID, successor.name, port))
	h.broadcastLine(protocol.EncodeHostMigrate(successor.name, ip, port), departedID)
}

// pickSuccessor walks the lobby's member list in join order and returns the
// first still-connected session other than the departing owner.
func (h *Hub) pickSuccessor(lobby Lobby, departedID string) *session {
	for _, member := range lobby.Members {
		if member == departedID {
			continue
		}
		if sess := h.findSession(member); sess != nil {
			return sess
		}
	}
	return nil
}
