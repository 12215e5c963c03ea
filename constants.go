package server

import "time"

const (
	// DefaultTCPPort is the lobby/session listener port.
	DefaultTCPPort = 7777
	// DefaultUDPPort is the simulation host listener port.
	DefaultUDPPort = 7778

	writeWait = 10 * time.Second

	tickRate       = 60 // simulation ticks per second
	broadcastEvery = 5  // snapshot every N ticks (~12 Hz)

	worldWidth  = 800.0
	worldHeight = 600.0
	entitySize  = 24.0 // axis-aligned bounding box edge

	moveSpeed           = 160.0 // units per second
	hazardRate          = 8.0   // hazard line descent per second
	lavaDamagePerSecond = 20.0
	maxHealth           = 100.0

	idleTimeout = 5 * time.Second

	// minPlayersForWin gates the last-one-standing check; a lone player in
	// an empty arena never "wins".
	minPlayersForWin = 2
)
