package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInputRoundTrip(t *testing.T) {
	cases := []Input{
		{Seq: 0, Mask: 0, ClientMs: 0},
		{Seq: 1, Mask: MaskUp, ClientMs: 1700000000000},
		{Seq: 42, Mask: MaskUp | MaskRight, ClientMs: 123456789},
		{Seq: 18446744073709551615, Mask: MaskAll, ClientMs: -5},
	}
	for _, in := range cases {
		out, err := DecodeInput(EncodeInput(in))
		require.NoError(t, err)
		require.Equal(t, in, out)
	}
}

func TestDecodeInput_MaskHighBitsStripped(t *testing.T) {
	in, err := DecodeInput("INPUT:1:255:10")
	require.NoError(t, err)
	require.Equal(t, MaskAll, in.Mask)
}

func TestDecodeInput_Malformed(t *testing.T) {
	for _, msg := range []string{
		"",
		"garbage",
		"INPUT",
		"INPUT:1",
		"INPUT:1:2",
		"INPUT:x:2:3",
		"INPUT:1:x:3",
		"INPUT:1:2:x",
		"SNAPSHOT:1:2:3",
	} {
		_, err := DecodeInput(msg)
		require.Error(t, err, "message %q", msg)
	}
}

func TestDecodeInput_ExtraTrailingFieldsIgnored(t *testing.T) {
	in, err := DecodeInput("INPUT:7:3:99:future:fields")
	require.NoError(t, err)
	require.Equal(t, Input{Seq: 7, Mask: 3, ClientMs: 99}, in)
}

func TestSnapshotRoundTrip(t *testing.T) {
	cases := []Snapshot{
		{Seq: 0, HazardY: 600},
		{Seq: 9, HazardY: 0, Players: []SnapshotPlayer{
			{ID: "Alice", X: 100, Y: 50, Health: 80},
		}},
		{Seq: 12, HazardY: 480.25, Players: []SnapshotPlayer{
			{ID: "Alice", X: 0, Y: 0, Health: 100},
			{ID: "Bob", X: 776, Y: 576, Health: 0},
			{ID: "Carol", X: 13.5, Y: 99.75, Health: 1},
		}},
	}
	for _, snap := range cases {
		out, err := DecodeSnapshot(EncodeSnapshot(snap))
		require.NoError(t, err)
		require.Equal(t, snap.Seq, out.Seq)
		require.InDelta(t, snap.HazardY, out.HazardY, 0.005)
		require.Len(t, out.Players, len(snap.Players))
		for i, p := range snap.Players {
			require.Equal(t, p.ID, out.Players[i].ID)
			require.InDelta(t, p.X, out.Players[i].X, 0.005)
			require.InDelta(t, p.Y, out.Players[i].Y, 0.005)
			require.Equal(t, p.Health, out.Players[i].Health)
		}
	}
}

func TestEncodeSnapshot_FixedDecimalPoint(t *testing.T) {
	msg := EncodeSnapshot(Snapshot{Seq: 1, HazardY: 480.5, Players: []SnapshotPlayer{
		{ID: "Alice", X: 1.25, Y: 2.5, Health: 100},
	}})
	require.Equal(t, "SNAPSHOT:1:480.50:1;Alice|1.25|2.50|100", msg)
}

func TestDecodeSnapshot_Malformed(t *testing.T) {
	for _, msg := range []string{
		"garbage",
		"SNAPSHOT",
		"SNAPSHOT:1:2",
		"SNAPSHOT:1:x:0",
		"SNAPSHOT:1:2:-1",
		"SNAPSHOT:1:2:2;Alice|1|2|3", // declares two rows, carries one
		"SNAPSHOT:1:2:1;Alice|x|2|3",
		"SNAPSHOT:1:2:1;|1|2|3", // empty id
	} {
		_, err := DecodeSnapshot(msg)
		require.Error(t, err, "message %q", msg)
	}
}

func TestDecodeSnapshot_ExtraRowsIgnored(t *testing.T) {
	snap, err := DecodeSnapshot("SNAPSHOT:3:100.00:1;Alice|1.00|2.00|50;Bob|3.00|4.00|60")
	require.NoError(t, err)
	require.Len(t, snap.Players, 1)
	require.Equal(t, "Alice", snap.Players[0].ID)
}

func TestHelloRoundTrip(t *testing.T) {
	name, err := DecodeHello(EncodeHello("Alice"))
	require.NoError(t, err)
	require.Equal(t, "Alice", name)

	// Colons in the name belong to the name.
	name, err = DecodeHello("HELLO:a:b")
	require.NoError(t, err)
	require.Equal(t, "a:b", name)

	_, err = DecodeHello("HELLO:")
	require.Error(t, err)
	_, err = DecodeHello("HELLO")
	require.Error(t, err)
}

func TestWinRoundTrip(t *testing.T) {
	id, err := DecodeWin(EncodeWin("Bob"))
	require.NoError(t, err)
	require.Equal(t, "Bob", id)

	_, err = DecodeWin("WIN:")
	require.Error(t, err)
	_, err = DecodeWin("LOSE:Bob")
	require.Error(t, err)
}
