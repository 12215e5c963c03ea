package client

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	server "lavarush/server"
)

func startLobbyServer(t *testing.T) string {
	t.Helper()
	hub := server.NewHub(server.NewRegistry(), nil, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx, ln)
	return ln.Addr().String()
}

func waitNotice(t *testing.T, c *LobbyClient, want string) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-c.Notices():
			require.True(t, ok, "notice channel closed while waiting for %q", want)
			if strings.HasPrefix(line, want) {
				return line
			}
		case <-deadline:
			t.Fatalf("never received a notice starting with %q", want)
		}
	}
}

func TestLobbyClient_RegisterListJoinStart(t *testing.T) {
	addr := startLobbyServer(t)

	alice, err := DialLobby(addr, "Alice")
	require.NoError(t, err)
	defer alice.Close()

	id, err := alice.Register("Arena", 6000, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	rows, err := alice.List()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Arena", rows[0].Name)
	require.Equal(t, 6000, rows[0].UDPPort)
	require.False(t, rows[0].Locked)

	ip, port, err := alice.Join(id)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", ip)
	require.Equal(t, 6000, port)

	require.NoError(t, alice.Start(id))

	// Relock is a policy error surfaced as a reply, not a transport error.
	err = alice.Start(id)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTimeout)
}

func TestLobbyClient_EmptyList(t *testing.T) {
	addr := startLobbyServer(t)

	c, err := DialLobby(addr, "Alice")
	require.NoError(t, err)
	defer c.Close()

	rows, err := c.List()
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestLobbyClient_JoinUnknownLobby(t *testing.T) {
	addr := startLobbyServer(t)

	c, err := DialLobby(addr, "Alice")
	require.NoError(t, err)
	defer c.Close()

	_, _, err = c.Join(99)
	require.Error(t, err)
}

func TestLobbyClient_Unregister(t *testing.T) {
	addr := startLobbyServer(t)

	c, err := DialLobby(addr, "Alice")
	require.NoError(t, err)
	defer c.Close()

	id, err := c.Register("Arena", 6000, 4)
	require.NoError(t, err)
	require.NoError(t, c.Unregister(id))

	rows, err := c.List()
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestLobbyClient_BroadcastsArriveAsNotices(t *testing.T) {
	addr := startLobbyServer(t)

	alice, err := DialLobby(addr, "Alice")
	require.NoError(t, err)
	defer alice.Close()
	bob, err := DialLobby(addr, "Bob")
	require.NoError(t, err)
	defer bob.Close()

	_, err = alice.Register("Arena", 6000, 4)
	require.NoError(t, err)

	// Bob never asked; the registration reaches him as a notice.
	waitNotice(t, bob, "HOST_REGISTERED 1")

	alice.Say("good luck")
	line := waitNotice(t, bob, "SAY")
	require.Contains(t, line, "Alice")
	require.Contains(t, line, "good luck")
}

func TestLobbyClient_ListingRowsNeverLeakAsNotices(t *testing.T) {
	addr := startLobbyServer(t)

	alice, err := DialLobby(addr, "Alice")
	require.NoError(t, err)
	defer alice.Close()

	_, err = alice.Register("Arena", 6000, 4)
	require.NoError(t, err)
	_, err = alice.Register("Pit", 6001, 8)
	require.NoError(t, err)

	rows, err := alice.List()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Rows belong to the listing reply; the notice stream must not see them.
	select {
	case line := <-alice.Notices():
		require.False(t, strings.Contains(line, "|"), "lobby row leaked as notice: %q", line)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestLobbyClient_MigrationNoticeAfterOwnerDrop(t *testing.T) {
	addr := startLobbyServer(t)

	alice, err := DialLobby(addr, "Alice")
	require.NoError(t, err)
	bob, err := DialLobby(addr, "Bob")
	require.NoError(t, err)
	defer bob.Close()

	id, err := alice.Register("Arena", 6000, 4)
	require.NoError(t, err)
	_, _, err = bob.Join(id)
	require.NoError(t, err)
	require.NoError(t, alice.Start(id))

	alice.Close()

	line := waitNotice(t, bob, "HOST_MIGRATE")
	require.Contains(t, line, "Bob")

	// The promoted owner reports where it actually bound; nothing to assert
	// on the wire here beyond the call not blocking.
	bob.AnnounceMigration("127.0.0.1", 6100)
}

func TestDialLobby_RefusedWithoutServer(t *testing.T) {
	_, err := DialLobby("127.0.0.1:1", "Alice")
	require.Error(t, err)
}
