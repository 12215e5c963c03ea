package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lavarush/server/logging"
	"lavarush/server/protocol"
)

type sessionState int

const (
	stateAwaitingHello sessionState = iota
	stateActive
	stateClosed
)

// session is the per-connection coordinator: greeting, command dispatch,
// chat relay, and lobby cleanup on close.
type session struct {
	id   string
	hub  *Hub
	conn net.Conn
	name string

	writeMu sync.Mutex
	state   sessionState
}

func newSession(hub *Hub, conn net.Conn) *session {
	return &session{
		id:    uuid.NewString(),
		hub:   hub,
		conn:  conn,
		state: stateAwaitingHello,
	}
}

func (s *session) run(ctx context.Context) {
	defer s.conn.Close()
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	scanner := bufio.NewScanner(s.conn)

	// First line must be HELLO; anything else closes the connection
	// without ever entering the active state.
	if !scanner.Scan() {
		s.state = stateClosed
		return
	}
	cmd, err := protocol.ParseCommand(scanner.Text())
	hello, ok := cmd.(protocol.CmdHello)
	if err != nil || !ok {
		s.writeLine(protocol.EncodeError("expected HELLO"))
		s.state = stateClosed
		return
	}
	s.name = hello.Name
	s.state = stateActive
	s.hub.add(s)
	s.hub.publisher.Publish(ctx, logging.SessionOpened(s.id, s.name))
	s.writeLine(protocol.ReplyWelcome + " " + s.name)
	s.hub.broadcastLine(protocol.EncodeInfo(s.name+" joined"), s.id)

	reason := "disconnect"
	for scanner.Scan() {
		cmd, err := protocol.ParseCommand(scanner.Text())
		if err != nil {
			s.writeLine(protocol.EncodeError("malformed command"))
			continue
		}
		if quit := s.dispatch(ctx, cmd); quit {
			reason = "quit"
			break
		}
	}
	s.state = stateClosed
	s.hub.drop(s, reason)
}

// dispatch handles one decoded command; returns true on QUIT.
func (s *session) dispatch(ctx context.Context, cmd protocol.Command) bool {
	switch cmd := cmd.(type) {
	case protocol.CmdQuit:
		return true
	case protocol.CmdHello:
		s.writeLine(protocol.EncodeError("already identified"))
	case protocol.CmdList:
		s.writeLine(protocol.ReplyList + " " + strings.Join(s.hub.PlayerNames(), ","))
	case protocol.CmdMsg:
		s.hub.broadcastLine(protocol.EncodeSay(s.name, cmd.Text), s.id)
	case protocol.CmdHostRegister:
		s.handleHostRegister(ctx, cmd)
	case protocol.CmdHostUnregister:
		s.handleHostUnregister(ctx, cmd)
	case protocol.CmdHostList:
		s.handleHostList()
	case protocol.CmdJoin:
		s.handleJoin(cmd)
	case protocol.CmdHostStart:
		s.handleHostStart(ctx, cmd)
	case protocol.CmdHostMigrate:
		s.handleHostMigrate(cmd)
	}
	return false
}

func (s *session) handleHostRegister(ctx context.Context, cmd protocol.CmdHostRegister) {
	ip := remoteIP(s.conn)
	id := s.hub.registry.Register(cmd.Name, ip, cmd.UDPPort, cmd.MaxPlayers, s.id)
	s.hub.publisher.Publish(ctx, logging.LobbyRegistered(id, cmd.Name, cmd.UDPPort))
	s.writeLine(protocol.EncodeHostRegistered(id))
	s.hub.broadcastLine(protocol.EncodeHostRegistered(id), s.id)
}

func (s *session) handleHostUnregister(ctx context.Context, cmd protocol.CmdHostUnregister) {
	if !s.hub.registry.Unregister(cmd.ID) {
		s.writeLine(protocol.EncodeError("lobby not found"))
		return
	}
	s.hub.publisher.Publish(ctx, logging.LobbyUnregistered(cmd.ID))
	s.writeLine(protocol.EncodeHostUnregistered(cmd.ID))
	s.hub.broadcastLine(protocol.EncodeHostUnregistered(cmd.ID), s.id)
}

func (s *session) handleHostList() {
	lobbies := s.hub.registry.List()
	s.writeLine(protocol.EncodeLobbiesHeader(len(lobbies)))
	for _, lobby := range lobbies {
		s.writeLine(protocol.EncodeLobbyRow(protocol.LobbyRow{
			ID:         lobby.ID,
			Name:       lobby.Name,
			IP:         lobby.HostIP,
			UDPPort:    lobby.UDPPort,
			MaxPlayers: lobby.MaxPlayers,
			CurPlayers: lobby.CurrentPlayers,
			Locked:     lobby.Locked,
		}))
	}
}

func (s *session) handleJoin(cmd protocol.CmdJoin) {
	ip, port, err := s.hub.registry.Join(cmd.ID, s.id)
	if err != nil {
		s.writeLine(protocol.EncodeError(err.Error()))
		return
	}
	s.writeLine(protocol.EncodeJoinInfo(ip, port))
}

func (s *session) handleHostStart(ctx context.Context, cmd protocol.CmdHostStart) {
	if err := s.hub.registry.Lock(cmd.ID); err != nil {
		s.writeLine(protocol.EncodeError(err.Error()))
		return
	}
	s.hub.publisher.Publish(ctx, logging.LobbyLocked(cmd.ID))
	s.writeLine(protocol.EncodeLobbyLocked(cmd.ID))
	s.hub.broadcastLine(protocol.EncodeLobbyLocked(cmd.ID), s.id)
}

// handleHostMigrate lets a freshly promoted owner correct the endpoint of a
// lobby it now hosts (the server assumes the old UDP port during migration;
// the new host may have bound elsewhere). The notice is relayed to everyone
// else as-is.
func (s *session) handleHostMigrate(cmd protocol.CmdHostMigrate) {
	updated := false
	for _, lobby := range s.hub.registry.OwnedBy(s.id) {
		if !lobby.Locked {
			continue
		}
		if s.hub.registry.SetEndpoint(lobby.ID, cmd.IP, cmd.UDPPort) {
			updated = true
		}
	}
	if !updated {
		s.writeLine(protocol.EncodeError("no hosted lobby to migrate"))
		return
	}
	s.hub.broadcastLine(protocol.EncodeHostMigrate(cmd.Owner, cmd.IP, cmd.UDPPort), s.id)
}

// writeLine sends one reply line. Write errors are swallowed; a dead
// connection surfaces on its own read loop.
func (s *session) writeLine(line string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.Write([]byte(line + "\n"))
}

// remoteIP strips the port from the connection's remote address.
func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
