// Package protocol implements the text wire format shared by the TCP lobby
// layer and the UDP gameplay layer. Every message is a single line (TCP) or
// a single datagram (UDP) of UTF-8 text. Encoding always succeeds; decoding
// returns an error for anything malformed and the caller drops the message.
package protocol

import "errors"

// UDP message prefixes.
const (
	MsgHello    = "HELLO"
	MsgInput    = "INPUT"
	MsgSnapshot = "SNAPSHOT"
	MsgWin      = "WIN"
)

// TCP server reply verbs.
const (
	ReplyWelcome          = "WELCOME"
	ReplyInfo             = "INFO"
	ReplyList             = "LIST"
	ReplySay              = "SAY"
	ReplyError            = "ERROR"
	ReplyHostRegistered   = "HOST_REGISTERED"
	ReplyHostUnregistered = "HOST_UNREGISTERED"
	ReplyLobbies          = "LOBBIES"
	ReplyJoinInfo         = "JOIN_INFO"
	ReplyLobbyLocked      = "LOBBY_LOCKED"
	ReplyHostMigrate      = "HOST_MIGRATE"
)

// Input mask bits. The wire carries the raw 4-bit value.
const (
	MaskUp    uint8 = 1 << 0
	MaskLeft  uint8 = 1 << 1
	MaskDown  uint8 = 1 << 2
	MaskRight uint8 = 1 << 3

	MaskAll = MaskUp | MaskLeft | MaskDown | MaskRight
)

var (
	ErrBadPrefix     = errors.New("protocol: unrecognized message prefix")
	ErrMissingFields = errors.New("protocol: missing required fields")
	ErrBadField      = errors.New("protocol: field failed to parse")
)

// SnapshotPlayer is one row of a SNAPSHOT payload.
type SnapshotPlayer struct {
	ID     string
	X      float64
	Y      float64
	Health int
}

// Snapshot is the decoded form of a SNAPSHOT datagram.
type Snapshot struct {
	Seq     uint64
	HazardY float64
	Players []SnapshotPlayer
}

// Input is the decoded form of an INPUT datagram.
type Input struct {
	Seq      uint64
	Mask     uint8
	ClientMs int64
}
