// Package client holds the client-side counterparts of the lobby server and
// simulation host: a UDP gameplay client and a TCP lobby client. These are
// the only surfaces the rendering and menu layers touch; neither layer ever
// sees a socket.
package client

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	server "lavarush/server"
	"lavarush/server/protocol"
)

const (
	inputSendInterval = 33 * time.Millisecond // ~30 Hz
	helloResendEvery  = 30                    // input ticks between HELLO re-announces (~1 s)
	readBufferSize    = 4096
)

// PlayerView is one player's latest snapshot state.
type PlayerView struct {
	X      float64
	Y      float64
	Health int
}

// View is the read-only world state the rendering layer consumes. It is
// replaced wholesale on every received snapshot.
type View struct {
	Seq     uint64
	HazardY float64
	Players map[string]PlayerView
}

// GameClient talks UDP to one simulation host. It is deliberately dumb: it
// sends the current input mask on a fixed cadence and keeps the most recent
// snapshot; no prediction, no reconciliation.
type GameClient struct {
	identity string
	conn     *net.UDPConn

	mask atomic.Uint32
	seq  atomic.Uint64

	mu   sync.RWMutex
	view View

	win    chan string
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// DialGame connects to a host, announces the identity, and starts the send
// and receive loops.
func DialGame(addr, identity string) (*GameClient, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve host addr %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial host %q: %w", addr, err)
	}
	c := &GameClient{
		identity: identity,
		conn:     conn,
		view:     View{Players: map[string]PlayerView{}},
		win:      make(chan string, 1),
		closed:   make(chan struct{}),
	}
	conn.Write([]byte(protocol.EncodeHello(identity)))

	c.wg.Add(2)
	go c.sendLoop()
	go c.receiveLoop()
	return c, nil
}

// SetInputMask replaces the 4-bit directional mask the send loop reports.
func (c *GameClient) SetInputMask(mask uint8) {
	c.mask.Store(uint32(mask & protocol.MaskAll))
}

// Snapshot returns a copy of the latest world view.
func (c *GameClient) Snapshot() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := View{Seq: c.view.Seq, HazardY: c.view.HazardY, Players: make(map[string]PlayerView, len(c.view.Players))}
	for id, p := range c.view.Players {
		out.Players[id] = p
	}
	return out
}

// WinNotices delivers the first WIN identity received. The channel is
// buffered; subsequent repeats of the same notice are dropped.
func (c *GameClient) WinNotices() <-chan string {
	return c.win
}

// SeedView converts the latest snapshot into a migration seed. The caller
// (the newly promoted owner) feeds it to server.NewHost.
func (c *GameClient) SeedView() server.Seed {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seed := server.Seed{HazardY: c.view.HazardY, Players: make(map[string]server.SeedPlayer, len(c.view.Players))}
	for id, p := range c.view.Players {
		seed.Players[id] = server.SeedPlayer{X: p.X, Y: p.Y, Health: float64(p.Health)}
	}
	return seed
}

// Close tears the client down. Reconnecting after migration means a fresh
// DialGame against the new endpoint; nothing here is reusable.
func (c *GameClient) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
	c.wg.Wait()
	return nil
}

func (c *GameClient) sendLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(inputSendInterval)
	defer ticker.Stop()
	ticks := 0
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			ticks++
			// The host forgets silent endpoints; a periodic HELLO keeps the
			// identity mapping alive and rebuilds it after an idle prune.
			if ticks%helloResendEvery == 0 {
				c.conn.Write([]byte(protocol.EncodeHello(c.identity)))
			}
			in := protocol.Input{
				Seq:      c.seq.Add(1),
				Mask:     uint8(c.mask.Load()),
				ClientMs: time.Now().UnixMilli(),
			}
			// Send failures are ignored; the next tick retries implicitly.
			c.conn.Write([]byte(protocol.EncodeInput(in)))
		}
	}
}

func (c *GameClient) receiveLoop() {
	defer c.wg.Done()
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return
		}
		msg := string(buf[:n])
		if snap, err := protocol.DecodeSnapshot(msg); err == nil {
			c.applySnapshot(snap)
			continue
		}
		if winner, err := protocol.DecodeWin(msg); err == nil {
			select {
			case c.win <- winner:
			default:
			}
		}
		// Anything else is dropped; the transport promises nothing.
	}
}

func (c *GameClient) applySnapshot(snap protocol.Snapshot) {
	players := make(map[string]PlayerView, len(snap.Players))
	for _, p := range snap.Players {
		players[p.ID] = PlayerView{X: p.X, Y: p.Y, Health: p.Health}
	}
	c.mu.Lock()
	c.view = View{Seq: snap.Seq, HazardY: snap.HazardY, Players: players}
	c.mu.Unlock()
}
