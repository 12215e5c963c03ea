package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	ErrLobbyNotFound = errors.New("lobby not found")
	ErrLobbyLocked   = errors.New("lobby already locked")
)

// Lobby is one published session. Owner and Members hold session IDs, not
// player names; the hub maps between the two.
type Lobby struct {
	ID             uint64
	Name           string
	HostIP         string
	UDPPort        int
	MaxPlayers     int
	CurrentPlayers int
	Locked         bool
	Owner          string
	Members        []string
}

// Registry is the in-memory lobby directory. It is the one structure
// mutated by every client connection concurrently, so all mutation is
// serialized behind its own mutex; callers never lock.
type Registry struct {
	mu      sync.Mutex
	nextID  atomic.Uint64
	lobbies map[uint64]*Lobby
}

func NewRegistry() *Registry {
	return &Registry{lobbies: make(map[uint64]*Lobby)}
}

// Register publishes a lobby and returns its ID. IDs are strictly
// increasing and never reused, even after Unregister.
func (r *Registry) Register(name, hostIP string, udpPort, maxPlayers int, owner string) uint64 {
	id := r.nextID.Add(1)
	lobby := &Lobby{
		ID:         id,
		Name:       name,
		HostIP:     hostIP,
		UDPPort:    udpPort,
		MaxPlayers: maxPlayers,
		Owner:      owner,
		Members:    []string{owner},
	}
	r.mu.Lock()
	r.lobbies[id] = lobby
	r.mu.Unlock()
	return id
}

// Unregister removes a lobby. Returns false when the ID is unknown.
func (r *Registry) Unregister(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lobbies[id]; !ok {
		return false
	}
	delete(r.lobbies, id)
	return true
}

// List returns a copy of every lobby, ordered by ID.
func (r *Registry) List() []Lobby {
	r.mu.Lock()
	out := make([]Lobby, 0, len(r.lobbies))
	for _, lobby := range r.lobbies {
		out = append(out, cloneLobby(lobby))
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a copy of one lobby.
func (r *Registry) Get(id uint64) (Lobby, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lobby, ok := r.lobbies[id]
	if !ok {
		return Lobby{}, false
	}
	return cloneLobby(lobby), true
}

// Join hands out the lobby's UDP endpoint and records the joining session
// as a member. The player count is advisory: it increments on every join,
// display-capped at MaxPlayers, and a join past the cap still succeeds.
func (r *Registry) Join(id uint64, session string) (string, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lobby, ok := r.lobbies[id]
	if !ok {
		return "", 0, fmt.Errorf("%w: %d", ErrLobbyNotFound, id)
	}
	if lobby.CurrentPlayers < lobby.MaxPlayers {
		lobby.CurrentPlayers++
	}
	if !containsString(lobby.Members, session) {
		lobby.Members = append(lobby.Members, session)
	}
	return lobby.HostIP, lobby.UDPPort, nil
}

// Lock marks a lobby as started. Locking an already-locked lobby is an
// error, not a no-op: it signals a broken session-start flow on the caller.
func (r *Registry) Lock(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lobby, ok := r.lobbies[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrLobbyNotFound, id)
	}
	if lobby.Locked {
		return fmt.Errorf("%w: %d", ErrLobbyLocked, id)
	}
	lobby.Locked = true
	return nil
}

// OwnedBy returns copies of every lobby owned by the given session.
func (r *Registry) OwnedBy(session string) []Lobby {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Lobby
	for _, lobby := range r.lobbies {
		if lobby.Owner == session {
			out = append(out, cloneLobby(lobby))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reassign re-parents a lobby to a new owning session and host endpoint
// during migration. The departed session is dropped from the member list.
func (r *Registry) Reassign(id uint64, newOwner, newIP string, newPort int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	lobby, ok := r.lobbies[id]
	if !ok {
		return false
	}
	departed := lobby.Owner
	lobby.Owner = newOwner
	lobby.HostIP = newIP
	lobby.UDPPort = newPort
	members := lobby.Members[:0]
	for _, member := range lobby.Members {
		if member != departed {
			members = append(members, member)
		}
	}
	lobby.Members = members
	if !containsString(lobby.Members, newOwner) {
		lobby.Members = append(lobby.Members, newOwner)
	}
	return true
}

// SetEndpoint updates a lobby's advertised UDP endpoint without changing
// ownership. Used when a migrated host reports where it actually bound.
func (r *Registry) SetEndpoint(id uint64, ip string, udpPort int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	lobby, ok := r.lobbies[id]
	if !ok {
		return false
	}
	lobby.HostIP = ip
	lobby.UDPPort = udpPort
	return true
}

func cloneLobby(l *Lobby) Lobby {
	out := *l
	out.Members = append([]string(nil), l.Members...)
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
