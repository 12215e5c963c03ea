package logging

import "strconv"

// Event constructors for the lobby, session, migration, and simulation
// domains. Keeping construction here keeps event names and field keys in one
// place.

const (
	EventLobbyRegistered   EventType = "lobby.registered"
	EventLobbyUnregistered EventType = "lobby.unregistered"
	EventLobbyLocked       EventType = "lobby.locked"
	EventSessionOpened     EventType = "session.opened"
	EventSessionClosed     EventType = "session.closed"
	EventMigrationStarted  EventType = "migration.started"
	EventMigrationFailed   EventType = "migration.failed"
	EventHostStarted       EventType = "host.started"
	EventHostStopped       EventType = "host.stopped"
	EventPlayerJoined      EventType = "player.joined"
	EventPlayerPruned      EventType = "player.pruned"
	EventPlayerWon         EventType = "player.won"
)

func LobbyRegistered(id uint64, name string, udpPort int) Event {
	return Event{
		Type:     EventLobbyRegistered,
		Actor:    lobbyRef(id),
		Severity: SeverityInfo,
		Category: CategoryLobby,
		Extra:    map[string]any{"name": name, "udpPort": udpPort},
	}
}

func LobbyUnregistered(id uint64) Event {
	return Event{
		Type:     EventLobbyUnregistered,
		Actor:    lobbyRef(id),
		Severity: SeverityInfo,
		Category: CategoryLobby,
	}
}

func LobbyLocked(id uint64) Event {
	return Event{
		Type:     EventLobbyLocked,
		Actor:    lobbyRef(id),
		Severity: SeverityInfo,
		Category: CategoryLobby,
	}
}

func SessionOpened(sessionID, playerName string) Event {
	return Event{
		Type:     EventSessionOpened,
		Actor:    EntityRef{ID: sessionID, Kind: EntityKindSession},
		Severity: SeverityInfo,
		Category: CategorySession,
		Extra:    map[string]any{"player": playerName},
	}
}

func SessionClosed(sessionID, reason string) Event {
	return Event{
		Type:     EventSessionClosed,
		Actor:    EntityRef{ID: sessionID, Kind: EntityKindSession},
		Severity: SeverityInfo,
		Category: CategorySession,
		Extra:    map[string]any{"reason": reason},
	}
}

func MigrationStarted(lobbyID uint64, newOwner string, udpPort int) Event {
	return Event{
		Type:     EventMigrationStarted,
		Actor:    lobbyRef(lobbyID),
		Severity: SeverityWarn,
		Category: CategoryMigration,
		Extra:    map[string]any{"newOwner": newOwner, "udpPort": udpPort},
	}
}

func MigrationFailed(lobbyID uint64, reason string) Event {
	return Event{
		Type:     EventMigrationFailed,
		Actor:    lobbyRef(lobbyID),
		Severity: SeverityError,
		Category: CategoryMigration,
		Extra:    map[string]any{"reason": reason},
	}
}

func HostStarted(addr string, seeded int) Event {
	return Event{
		Type:     EventHostStarted,
		Actor:    EntityRef{ID: addr, Kind: EntityKindWorld},
		Severity: SeverityInfo,
		Category: CategorySimulation,
		Extra:    map[string]any{"seededPlayers": seeded},
	}
}

func HostStopped(addr string) Event {
	return Event{
		Type:     EventHostStopped,
		Actor:    EntityRef{ID: addr, Kind: EntityKindWorld},
		Severity: SeverityInfo,
		Category: CategorySimulation,
	}
}

func PlayerJoined(tick uint64, identity string, seeded bool) Event {
	return Event{
		Type:     EventPlayerJoined,
		Tick:     tick,
		Actor:    EntityRef{ID: identity, Kind: EntityKindPlayer},
		Severity: SeverityInfo,
		Category: CategorySimulation,
		Extra:    map[string]any{"seeded": seeded},
	}
}

func PlayerPruned(tick uint64, identity string, idleMs int64) Event {
	return Event{
		Type:     EventPlayerPruned,
		Tick:     tick,
		Actor:    EntityRef{ID: identity, Kind: EntityKindPlayer},
		Severity: SeverityInfo,
		Category: CategorySimulation,
		Extra:    map[string]any{"idleMs": idleMs},
	}
}

func PlayerWon(tick uint64, identity string) Event {
	return Event{
		Type:     EventPlayerWon,
		Tick:     tick,
		Actor:    EntityRef{ID: identity, Kind: EntityKindPlayer},
		Severity: SeverityInfo,
		Category: CategorySimulation,
	}
}

func lobbyRef(id uint64) EntityRef {
	return EntityRef{ID: strconv.FormatUint(id, 10), Kind: EntityKindLobby}
}
