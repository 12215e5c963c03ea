package server

import (
	"net"
	"testing"
	"time"

	"lavarush/server/protocol"
)

func testAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func findPlayer(rows []protocol.SnapshotPlayer, id string) (protocol.SnapshotPlayer, bool) {
	for _, row := range rows {
		if row.ID == id {
			return row, true
		}
	}
	return protocol.SnapshotPlayer{}, false
}

func TestHost_GarbageDatagramIgnored(t *testing.T) {
	h := NewHost(HostConfig{ListenAddr: ":0"})

	h.handleDatagram("garbage", testAddr(5000))
	h.handleDatagram("", testAddr(5001))
	h.handleDatagram("INPUT:not:numbers:here", testAddr(5002))
	h.handleDatagram("SNAPSHOT:1:2:1;Alice|1|2|3", testAddr(5003))

	if len(h.players) != 0 {
		t.Fatalf("expected no players after garbage, got %d", len(h.players))
	}
	if len(h.endpoints) != 0 {
		t.Fatalf("expected no endpoints after garbage, got %d", len(h.endpoints))
	}
}

func TestHost_InputBeforeHelloDropped(t *testing.T) {
	h := NewHost(HostConfig{ListenAddr: ":0"})

	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 1, Mask: protocol.MaskUp}), testAddr(5000))
	if len(h.players) != 0 {
		t.Fatalf("expected input without HELLO to be dropped")
	}
}

func TestHost_FirstInputCreatesPlayer(t *testing.T) {
	h := NewHost(HostConfig{ListenAddr: ":0"})
	addr := testAddr(5000)

	h.handleDatagram(protocol.EncodeHello("Alice"), addr)
	if len(h.players) != 0 {
		t.Fatalf("HELLO alone must not create a player")
	}

	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 1, Mask: protocol.MaskRight, ClientMs: 10}), addr)
	state, ok := h.byIdentity["Alice"]
	if !ok {
		t.Fatalf("expected player Alice after first input")
	}
	if state.InputMask != protocol.MaskRight {
		t.Fatalf("expected mask %d, got %d", protocol.MaskRight, state.InputMask)
	}
	if state.Health != maxHealth {
		t.Fatalf("expected full health, got %v", state.Health)
	}
}

func TestHost_LatestInputWinsRegardlessOfSequence(t *testing.T) {
	h := NewHost(HostConfig{ListenAddr: ":0"})
	addr := testAddr(5000)
	h.handleDatagram(protocol.EncodeHello("Alice"), addr)

	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 10, Mask: protocol.MaskUp}), addr)
	// An older sequence arriving later still replaces the mask.
	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 3, Mask: protocol.MaskDown}), addr)

	if got := h.byIdentity["Alice"].InputMask; got != protocol.MaskDown {
		t.Fatalf("expected the most recently received mask, got %d", got)
	}
}

func TestHost_SeededPlayerResumesState(t *testing.T) {
	h := NewHost(HostConfig{
		ListenAddr: ":0",
		Seed: &Seed{
			HazardY: 500,
			Players: map[string]SeedPlayer{
				"Alice": {X: 100, Y: 50, Health: 80},
			},
		},
	})

	if h.world.HazardY != 500 {
		t.Fatalf("expected seeded hazard 500, got %v", h.world.HazardY)
	}

	addr := testAddr(5000)
	h.handleDatagram(protocol.EncodeHello("Alice"), addr)
	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 1}), addr)

	rows := snapshotPlayers(h.players)
	alice, ok := findPlayer(rows, "Alice")
	if !ok {
		t.Fatalf("expected Alice in snapshot")
	}
	if alice.X != 100 || alice.Y != 50 {
		t.Fatalf("expected seeded position (100,50), got (%v,%v)", alice.X, alice.Y)
	}
	if alice.Health != 80 {
		t.Fatalf("expected seeded health 80, got %d", alice.Health)
	}
}

func TestHost_UnseededIdentitySpawnsFresh(t *testing.T) {
	h := NewHost(HostConfig{
		ListenAddr: ":0",
		Seed:       &Seed{HazardY: 500, Players: map[string]SeedPlayer{"Alice": {X: 1, Y: 2, Health: 3}}},
	})
	addr := testAddr(5000)
	h.handleDatagram(protocol.EncodeHello("Bob"), addr)
	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 1}), addr)

	bob := h.byIdentity["Bob"]
	if bob.Health != maxHealth {
		t.Fatalf("expected fresh spawn at full health, got %v", bob.Health)
	}
}

func TestHost_IdlePlayerPruned(t *testing.T) {
	h := NewHost(HostConfig{ListenAddr: ":0"})
	addr := testAddr(5000)
	h.handleDatagram(protocol.EncodeHello("Alice"), addr)
	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 1}), addr)

	// Age the last input past the idle threshold.
	h.byIdentity["Alice"].LastInputMs = time.Now().Add(-idleTimeout - time.Second).UnixMilli()

	h.step(time.Now(), 1.0/float64(tickRate))

	if len(h.players) != 0 {
		t.Fatalf("expected idle player pruned from players map")
	}
	if _, ok := h.byIdentity["Alice"]; ok {
		t.Fatalf("expected idle player pruned from identity map")
	}
	if rows := snapshotPlayers(h.players); len(rows) != 0 {
		t.Fatalf("expected pruned player absent from snapshot, got %v", rows)
	}
}

func TestHost_HelloOnlyEndpointPruned(t *testing.T) {
	h := NewHost(HostConfig{ListenAddr: ":0"})
	h.handleDatagram(protocol.EncodeHello("Ghost"), testAddr(5000))

	if len(h.endpoints) != 1 || len(h.identities) != 1 {
		t.Fatalf("expected HELLO to register the endpoint, endpoints=%d identities=%d", len(h.endpoints), len(h.identities))
	}

	h.mu.Lock()
	h.prunePlayersLocked(time.Now().Add(idleTimeout + 10*time.Second))
	h.mu.Unlock()

	if len(h.endpoints) != 0 || len(h.identities) != 0 || len(h.lastSeen) != 0 {
		t.Fatalf("expected silent HELLO-only endpoint forgotten, endpoints=%d identities=%d lastSeen=%d",
			len(h.endpoints), len(h.identities), len(h.lastSeen))
	}
}

func TestHost_ReannouncedIdentityRejoinsAfterPrune(t *testing.T) {
	h := NewHost(HostConfig{ListenAddr: ":0"})
	addr := testAddr(5000)
	h.handleDatagram(protocol.EncodeHello("Alice"), addr)
	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 1, Mask: protocol.MaskUp}), addr)

	// Full silence past the threshold forgets the player and the endpoint.
	h.mu.Lock()
	h.prunePlayersLocked(time.Now().Add(idleTimeout + 10*time.Second))
	h.mu.Unlock()
	if len(h.players) != 0 || len(h.endpoints) != 0 {
		t.Fatalf("expected silent endpoint fully pruned, players=%d endpoints=%d", len(h.players), len(h.endpoints))
	}

	// A fresh HELLO plus input from the same endpoint rejoins.
	h.handleDatagram(protocol.EncodeHello("Alice"), addr)
	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 2, Mask: protocol.MaskLeft}), addr)
	if _, ok := h.byIdentity["Alice"]; !ok {
		t.Fatalf("expected re-announced identity to rejoin")
	}
}

func TestHost_InputRejoinsWhileHellosContinue(t *testing.T) {
	h := NewHost(HostConfig{ListenAddr: ":0"})
	addr := testAddr(5000)
	h.handleDatagram(protocol.EncodeHello("Alice"), addr)
	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 1}), addr)

	// Input stream stalls while HELLOs keep arriving: the player record is
	// pruned but the identity mapping survives.
	h.byIdentity["Alice"].LastInputMs = time.Now().Add(-idleTimeout - time.Second).UnixMilli()
	h.handleDatagram(protocol.EncodeHello("Alice"), addr)
	h.mu.Lock()
	h.prunePlayersLocked(time.Now())
	h.mu.Unlock()
	if len(h.players) != 0 {
		t.Fatalf("expected input-idle player pruned")
	}
	if len(h.identities) != 1 {
		t.Fatalf("expected identity retained while HELLOs continue, identities=%d", len(h.identities))
	}

	// The resumed input stream recreates the player without a new HELLO.
	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 2, Mask: protocol.MaskDown}), addr)
	state, ok := h.byIdentity["Alice"]
	if !ok {
		t.Fatalf("expected resumed input to recreate the player")
	}
	if state.InputMask != protocol.MaskDown {
		t.Fatalf("expected resumed mask %d, got %d", protocol.MaskDown, state.InputMask)
	}
}

func TestHost_StepBeforeBindDoesNotPanic(t *testing.T) {
	h := NewHost(HostConfig{ListenAddr: ":0"})
	addr := testAddr(5000)
	h.handleDatagram(protocol.EncodeHello("Alice"), addr)
	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 1}), addr)

	// Enough steps to cross a broadcast tick with no socket bound.
	for i := 0; i < broadcastEvery+1; i++ {
		h.step(time.Now(), 1.0/float64(tickRate))
	}
}

func TestHost_StepOrderHazardThenDamage(t *testing.T) {
	h := NewHost(HostConfig{ListenAddr: ":0"})
	addr := testAddr(5000)
	h.handleDatagram(protocol.EncodeHello("Alice"), addr)
	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 1}), addr)

	// Park the player at the bottom and run the hazard most of the way down.
	alice := h.byIdentity["Alice"]
	alice.Y = worldHeight - entitySize
	h.world.HazardY = alice.Y + entitySize/2

	before := alice.Health
	h.step(time.Now(), 1.0/float64(tickRate))
	if alice.Health >= before {
		t.Fatalf("expected submerged player to lose health, %v -> %v", before, alice.Health)
	}
}

func TestHost_WinnerRequiresTwoEverJoined(t *testing.T) {
	h := NewHost(HostConfig{ListenAddr: ":0"})
	a := testAddr(5000)
	h.handleDatagram(protocol.EncodeHello("Alice"), a)
	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 1}), a)

	h.mu.Lock()
	winner := h.winnerLocked()
	h.mu.Unlock()
	if winner != "" {
		t.Fatalf("lone player must not win, got %q", winner)
	}

	b := testAddr(5001)
	h.handleDatagram(protocol.EncodeHello("Bob"), b)
	h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 1}), b)

	h.byIdentity["Bob"].Health = 0

	h.mu.Lock()
	winner = h.winnerLocked()
	h.mu.Unlock()
	if winner != "Alice" {
		t.Fatalf("expected Alice as last one standing, got %q", winner)
	}
}

func TestHost_SnapshotOrderedByIdentity(t *testing.T) {
	h := NewHost(HostConfig{ListenAddr: ":0"})
	for i, name := range []string{"zoe", "alice", "mid"} {
		addr := testAddr(5000 + i)
		h.handleDatagram(protocol.EncodeHello(name), addr)
		h.handleDatagram(protocol.EncodeInput(protocol.Input{Seq: 1}), addr)
	}
	rows := snapshotPlayers(h.players)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].ID != "alice" || rows[1].ID != "mid" || rows[2].ID != "zoe" {
		t.Fatalf("rows not ordered by identity: %v", rows)
	}
}
