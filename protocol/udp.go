package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// floatDecimals fixes the wire precision for coordinates and the hazard
// line. Both ends parse with ParseFloat, so the count only bounds datagram
// size, it is not a contract.
const floatDecimals = 2

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', floatDecimals, 64)
}

// EncodeHello renders the identity announce sent as the first datagram (and
// reused verbatim as the first TCP line).
func EncodeHello(name string) string {
	return MsgHello + ":" + name
}

// DecodeHello extracts the announced identity. The name may itself contain
// colons; everything after the prefix belongs to it.
func DecodeHello(msg string) (string, error) {
	rest, ok := strings.CutPrefix(msg, MsgHello+":")
	if !ok {
		return "", ErrBadPrefix
	}
	if rest == "" {
		return "", ErrMissingFields
	}
	return rest, nil
}

// EncodeInput renders INPUT:<seq>:<mask>:<clientMs>.
func EncodeInput(in Input) string {
	return MsgInput + ":" +
		strconv.FormatUint(in.Seq, 10) + ":" +
		strconv.FormatUint(uint64(in.Mask), 10) + ":" +
		strconv.FormatInt(in.ClientMs, 10)
}

// DecodeInput parses an INPUT datagram. Extra trailing fields are ignored.
func DecodeInput(msg string) (Input, error) {
	parts := strings.Split(msg, ":")
	if parts[0] != MsgInput {
		return Input{}, ErrBadPrefix
	}
	if len(parts) < 4 {
		return Input{}, ErrMissingFields
	}
	seq, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Input{}, fmt.Errorf("%w: seq %q", ErrBadField, parts[1])
	}
	mask, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil {
		return Input{}, fmt.Errorf("%w: mask %q", ErrBadField, parts[2])
	}
	clientMs, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Input{}, fmt.Errorf("%w: clientMs %q", ErrBadField, parts[3])
	}
	return Input{Seq: seq, Mask: uint8(mask) & MaskAll, ClientMs: clientMs}, nil
}

// EncodeSnapshot renders SNAPSHOT:<seq>:<hazardY>:<count>;id|x|y|hp;...
func EncodeSnapshot(s Snapshot) string {
	var b strings.Builder
	b.WriteString(MsgSnapshot)
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(s.Seq, 10))
	b.WriteByte(':')
	b.WriteString(formatFloat(s.HazardY))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(len(s.Players)))
	for _, p := range s.Players {
		b.WriteByte(';')
		b.WriteString(p.ID)
		b.WriteByte('|')
		b.WriteString(formatFloat(p.X))
		b.WriteByte('|')
		b.WriteString(formatFloat(p.Y))
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(p.Health))
	}
	return b.String()
}

// DecodeSnapshot parses a SNAPSHOT datagram. Rows beyond the declared count
// are ignored; fewer rows than declared is an error.
func DecodeSnapshot(msg string) (Snapshot, error) {
	chunks := strings.Split(msg, ";")
	head := strings.Split(chunks[0], ":")
	if head[0] != MsgSnapshot {
		return Snapshot{}, ErrBadPrefix
	}
	if len(head) < 4 {
		return Snapshot{}, ErrMissingFields
	}
	seq, err := strconv.ParseUint(head[1], 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: seq %q", ErrBadField, head[1])
	}
	hazardY, err := strconv.ParseFloat(head[2], 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: hazardY %q", ErrBadField, head[2])
	}
	count, err := strconv.Atoi(head[3])
	if err != nil || count < 0 {
		return Snapshot{}, fmt.Errorf("%w: count %q", ErrBadField, head[3])
	}
	if len(chunks)-1 < count {
		return Snapshot{}, ErrMissingFields
	}
	snap := Snapshot{Seq: seq, HazardY: hazardY}
	if count > 0 {
		snap.Players = make([]SnapshotPlayer, 0, count)
	}
	for _, row := range chunks[1 : count+1] {
		player, err := decodeSnapshotRow(row)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Players = append(snap.Players, player)
	}
	return snap, nil
}

func decodeSnapshotRow(row string) (SnapshotPlayer, error) {
	fields := strings.Split(row, "|")
	if len(fields) < 4 {
		return SnapshotPlayer{}, ErrMissingFields
	}
	if fields[0] == "" {
		return SnapshotPlayer{}, ErrMissingFields
	}
	x, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return SnapshotPlayer{}, fmt.Errorf("%w: x %q", ErrBadField, fields[1])
	}
	y, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return SnapshotPlayer{}, fmt.Errorf("%w: y %q", ErrBadField, fields[2])
	}
	hp, err := strconv.Atoi(fields[3])
	if err != nil {
		return SnapshotPlayer{}, fmt.Errorf("%w: hp %q", ErrBadField, fields[3])
	}
	return SnapshotPlayer{ID: fields[0], X: x, Y: y, Health: hp}, nil
}

// EncodeWin renders WIN:<id>.
func EncodeWin(id string) string {
	return MsgWin + ":" + id
}

// DecodeWin extracts the winning identity.
func DecodeWin(msg string) (string, error) {
	rest, ok := strings.CutPrefix(msg, MsgWin+":")
	if !ok {
		return "", ErrBadPrefix
	}
	if rest == "" {
		return "", ErrMissingFields
	}
	return rest, nil
}
