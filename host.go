package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"lavarush/server/internal/telemetry"
	"lavarush/server/logging"
	"lavarush/server/protocol"
)

// SeedPlayer is one player's carried-over state in a migration seed.
type SeedPlayer struct {
	X      float64
	Y      float64
	Health float64
}

// Seed is the state payload a new simulation host is constructed from after
// migration. It is always a copy; hosts never share state references.
type Seed struct {
	Players map[string]SeedPlayer
	HazardY float64
}

// HostConfig tunes a simulation host instance.
type HostConfig struct {
	ListenAddr     string
	Seed           *Seed
	TickRate       int
	BroadcastEvery int
	Logger         telemetry.Logger
	Metrics        telemetry.Recorder
	Publisher      logging.Publisher
	// OnSnapshot observes each outgoing snapshot (diagnostics feed). Called
	// from the simulation goroutine; implementations must not block.
	OnSnapshot func(protocol.Snapshot)
}

// Host is the authoritative simulation for one session: one World, one set
// of player states, a UDP receive loop, and a fixed-tick simulation loop.
// State is mutated only by those two loops, never across host instances.
type Host struct {
	cfg  HostConfig
	conn *net.UDPConn

	mu         sync.Mutex
	world      World
	players    map[string]*playerState // keyed by transport endpoint
	byIdentity map[string]*playerState // migration-continuity key
	endpoints  map[string]*net.UDPAddr
	identities map[string]string // endpoint -> announced identity
	lastSeen   map[string]int64  // endpoint -> last datagram, unix millis
	seeded     map[string]SeedPlayer
	joinedEver int
	tick       uint64
	winner     string

	logger    telemetry.Logger
	metrics   telemetry.Recorder
	publisher logging.Publisher
	seq       uint64
}

// NewHost prepares a host; Run binds the socket and starts the loops.
func NewHost(cfg HostConfig) *Host {
	if cfg.TickRate <= 0 {
		cfg.TickRate = tickRate
	}
	if cfg.BroadcastEvery <= 0 {
		cfg.BroadcastEvery = broadcastEvery
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(nil)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	h := &Host{
		cfg:        cfg,
		world:      newWorld(),
		players:    make(map[string]*playerState),
		byIdentity: make(map[string]*playerState),
		endpoints:  make(map[string]*net.UDPAddr),
		identities: make(map[string]string),
		lastSeen:   make(map[string]int64),
		seeded:     make(map[string]SeedPlayer),
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		publisher:  cfg.Publisher,
	}
	if cfg.Seed != nil {
		h.world.HazardY = clamp(cfg.Seed.HazardY, 0, worldHeight)
		for identity, seed := range cfg.Seed.Players {
			h.seeded[identity] = seed
		}
		// Seeded players count toward the win gate: the session already
		// had them before the hand-off.
		h.joinedEver = len(cfg.Seed.Players)
	}
	return h
}

// Run binds the UDP socket and drives both loops until ctx is cancelled.
func (h *Host) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", h.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("resolve udp addr %q: %w", h.cfg.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen udp %q: %w", h.cfg.ListenAddr, err)
	}
	h.conn = conn
	h.publisher.Publish(ctx, logging.HostStarted(conn.LocalAddr().String(), len(h.seeded)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.receiveLoop()
	}()

	h.simulationLoop(ctx)

	// Closing the socket unblocks the receive loop at its next read.
	conn.Close()
	<-done
	h.publisher.Publish(context.Background(), logging.HostStopped(conn.LocalAddr().String()))
	return nil
}

// LocalAddr reports the bound UDP address; nil before Run.
func (h *Host) LocalAddr() net.Addr {
	if h.conn == nil {
		return nil
	}
	return h.conn.LocalAddr()
}

// receiveLoop consumes datagrams until the socket closes. Unparseable
// datagrams are dropped silently; UDP has no error back-channel.
func (h *Host) receiveLoop() {
	buf := make([]byte, 2048)
	for {
		n, sender, err := h.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if h.metrics != nil {
			h.metrics.RecordDatagram(n)
		}
		h.handleDatagram(string(buf[:n]), sender)
	}
}

func (h *Host) handleDatagram(msg string, sender *net.UDPAddr) {
	if name, err := protocol.DecodeHello(msg); err == nil {
		h.handleHello(name, sender)
		return
	}
	if input, err := protocol.DecodeInput(msg); err == nil {
		h.handleInput(input, sender)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordDrop()
	}
}

func (h *Host) handleHello(name string, sender *net.UDPAddr) {
	endpoint := sender.String()
	h.mu.Lock()
	h.identities[endpoint] = name
	h.endpoints[endpoint] = cloneUDPAddr(sender)
	h.lastSeen[endpoint] = time.Now().UnixMilli()
	h.mu.Unlock()
}

// handleInput records the latest mask for the sender. The embedded sequence
// number is informational: only the most recently received input counts,
// matching the protocol's no-ordering guarantee.
func (h *Host) handleInput(input protocol.Input, sender *net.UDPAddr) {
	endpoint := sender.String()
	now := time.Now().UnixMilli()

	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.players[endpoint]
	if !ok {
		identity, known := h.identities[endpoint]
		if !known {
			// No HELLO seen from this endpoint; identity unresolved.
			if h.metrics != nil {
				h.metrics.RecordDrop()
			}
			return
		}
		state = h.attachPlayerLocked(identity, endpoint, sender)
	}
	state.InputMask = input.Mask
	state.LastInputMs = now
	h.lastSeen[endpoint] = now
}

// attachPlayerLocked creates the player record for an endpoint, resuming
// seeded state when the identity came over in a migration.
func (h *Host) attachPlayerLocked(identity, endpoint string, sender *net.UDPAddr) *playerState {
	state := &playerState{
		Identity: identity,
		X:        h.world.Width / 2,
		Y:        0,
		Health:   maxHealth,
	}
	seededPlayer, wasSeeded := h.seeded[identity]
	if wasSeeded {
		state.X = clamp(seededPlayer.X, 0, h.world.Width-entitySize)
		state.Y = clamp(seededPlayer.Y, 0, h.world.Height-entitySize)
		state.Health = clamp(seededPlayer.Health, 0, maxHealth)
		delete(h.seeded, identity)
	} else {
		h.joinedEver++
	}
	h.players[endpoint] = state
	h.byIdentity[identity] = state
	h.endpoints[endpoint] = cloneUDPAddr(sender)
	h.publisher.Publish(context.Background(), logging.PlayerJoined(h.tick, identity, wasSeeded))
	return state
}

// simulationLoop runs the fixed tick until cancellation. Phase order within
// a tick is fixed: prune, move, hazard, damage, broadcast.
func (h *Host) simulationLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(h.cfg.TickRate))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			if dt <= 0 {
				dt = 1.0 / float64(h.cfg.TickRate)
			}
			last = now
			h.step(now, dt)
		}
	}
}

func (h *Host) step(now time.Time, dt float64) {
	started := time.Now()

	h.mu.Lock()
	h.tick++
	h.prunePlayersLocked(now)
	for _, p := range h.players {
		h.world.integrateMovement(p, dt)
	}
	h.world.advanceHazard(dt)
	for _, p := range h.players {
		h.world.applyHazardDamage(p, dt)
	}

	broadcast := h.tick%uint64(h.cfg.BroadcastEvery) == 0
	var snap protocol.Snapshot
	var targets []*net.UDPAddr
	var winner string
	if broadcast {
		h.seq++
		snap = protocol.Snapshot{
			Seq:     h.seq,
			HazardY: h.world.HazardY,
			Players: snapshotPlayers(h.players),
		}
		targets = make([]*net.UDPAddr, 0, len(h.endpoints))
		for _, addr := range h.endpoints {
			targets = append(targets, addr)
		}
		winner = h.winnerLocked()
	}
	h.mu.Unlock()

	if broadcast {
		h.broadcast(snap, targets, winner)
	}
	if h.metrics != nil {
		h.metrics.RecordTickDuration(time.Since(started))
	}
}

// prunePlayersLocked ages out stale state on the idle threshold. Player
// records go on input silence; the endpoint, identity, and last-seen records
// go on datagram silence of any kind, so a HELLO-only endpoint cannot stay a
// broadcast target forever. An identity whose HELLOs keep arriving survives a
// player prune, and its next input reattaches through the normal first-input
// path.
func (h *Host) prunePlayersLocked(now time.Time) {
	cutoff := now.Add(-idleTimeout).UnixMilli()
	for endpoint, p := range h.players {
		if p.LastInputMs > cutoff {
			continue
		}
		delete(h.players, endpoint)
		delete(h.byIdentity, p.Identity)
		h.publisher.Publish(context.Background(), logging.PlayerPruned(h.tick, p.Identity, now.UnixMilli()-p.LastInputMs))
	}
	for endpoint, seen := range h.lastSeen {
		if seen > cutoff {
			continue
		}
		delete(h.endpoints, endpoint)
		delete(h.identities, endpoint)
		delete(h.lastSeen, endpoint)
	}
}

// winnerLocked reports the last player standing once the session has ever
// held enough players to make "last" meaningful.
func (h *Host) winnerLocked() string {
	if h.joinedEver < minPlayersForWin {
		return ""
	}
	alive := ""
	count := 0
	for _, p := range h.players {
		if p.Health > 0 {
			alive = p.Identity
			count++
		}
	}
	if count != 1 {
		return ""
	}
	if h.winner == "" {
		h.winner = alive
		h.publisher.Publish(context.Background(), logging.PlayerWon(h.tick, alive))
	}
	return alive
}

// broadcast sends the snapshot (and the win notice, when decided) to every
// known endpoint. Per-endpoint send failures are ignored: an unreachable
// client stops looking responsive and is eventually pruned.
func (h *Host) broadcast(snap protocol.Snapshot, targets []*net.UDPAddr, winner string) {
	if h.conn == nil {
		return
	}
	payload := []byte(protocol.EncodeSnapshot(snap))
	var winPayload []byte
	if winner != "" {
		winPayload = []byte(protocol.EncodeWin(winner))
	}
	for _, addr := range targets {
		if _, err := h.conn.WriteToUDP(payload, addr); err != nil {
			continue
		}
		if winPayload != nil {
			h.conn.WriteToUDP(winPayload, addr)
		}
	}
	if h.metrics != nil {
		h.metrics.RecordBroadcast(len(payload)*len(targets), len(snap.Players))
	}
	if h.cfg.OnSnapshot != nil {
		h.cfg.OnSnapshot(snap)
	}
}

func cloneUDPAddr(addr *net.UDPAddr) *net.UDPAddr {
	out := *addr
	out.IP = append(net.IP(nil), addr.IP...)
	return &out
}
