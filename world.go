package server

import (
	"math"
	"sort"

	"lavarush/server/protocol"
)

// World holds the per-session arena state owned by exactly one simulation
// host. Migration rebuilds a World from a copied seed; a World reference is
// never shared across hosts.
type World struct {
	Width           float64
	Height          float64
	HazardY         float64
	MoveSpeed       float64
	HazardRate      float64
	DamagePerSecond float64
}

func newWorld() World {
	return World{
		Width:           worldWidth,
		Height:          worldHeight,
		HazardY:         worldHeight,
		MoveSpeed:       moveSpeed,
		HazardRate:      hazardRate,
		DamagePerSecond: lavaDamagePerSecond,
	}
}

// playerState is the authoritative record for one connected player. Health
// is tracked as a float so fractional per-tick damage accumulates; the wire
// reports it rounded up, so anything above zero still shows as alive.
type playerState struct {
	Identity    string
	X           float64
	Y           float64
	Health      float64
	InputMask   uint8
	LastInputMs int64
}

func (p *playerState) wireHealth() int {
	return int(math.Ceil(clamp(p.Health, 0, maxHealth)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// maskVector turns the 4-bit direction mask into a unit vector. Opposing
// bits cancel; diagonals are normalized so diagonal movement is not faster.
func maskVector(mask uint8) (float64, float64) {
	var dx, dy float64
	if mask&protocol.MaskUp != 0 {
		dy -= 1
	}
	if mask&protocol.MaskDown != 0 {
		dy += 1
	}
	if mask&protocol.MaskLeft != 0 {
		dx -= 1
	}
	if mask&protocol.MaskRight != 0 {
		dx += 1
	}
	length := math.Hypot(dx, dy)
	if length != 0 {
		dx /= length
		dy /= length
	}
	return dx, dy
}

// integrateMovement advances one player by its current mask. Velocity is
// rebuilt from the mask every tick; there is no stored momentum.
func (w *World) integrateMovement(p *playerState, dt float64) {
	dx, dy := maskVector(p.InputMask)
	if dx == 0 && dy == 0 {
		return
	}
	p.X = clamp(p.X+dx*w.MoveSpeed*dt, 0, w.Width-entitySize)
	p.Y = clamp(p.Y+dy*w.MoveSpeed*dt, 0, w.Height-entitySize)
}

// advanceHazard lowers the hazard line. It never rises and floors at zero.
func (w *World) advanceHazard(dt float64) {
	w.HazardY = clamp(w.HazardY-w.HazardRate*dt, 0, w.HazardY)
}

// applyHazardDamage drains health from every submerged player. A player is
// submerged when the bottom edge of its box sits past the hazard line.
func (w *World) applyHazardDamage(p *playerState, dt float64) {
	if !p.submerged(w.HazardY) {
		return
	}
	p.Health = clamp(p.Health-w.DamagePerSecond*dt, 0, maxHealth)
}

func (p *playerState) submerged(hazardY float64) bool {
	return p.Y+entitySize > hazardY
}

// snapshotPlayers renders the current player set as wire rows, ordered by
// identity so consecutive snapshots are comparable.
func snapshotPlayers(players map[string]*playerState) []protocol.SnapshotPlayer {
	rows := make([]protocol.SnapshotPlayer, 0, len(players))
	for _, p := range players {
		rows = append(rows, protocol.SnapshotPlayer{
			ID:     p.Identity,
			X:      p.X,
			Y:      p.Y,
			Health: p.wireHealth(),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}
