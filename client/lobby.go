package client

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"lavarush/server/protocol"
)

const requestTimeout = 5 * time.Second

// ErrTimeout is returned when the server does not answer a request in time.
var ErrTimeout = errors.New("lobby request timed out")

// LobbyClient drives one TCP session: request/response lobby commands plus
// a pass-through channel of asynchronous notices (chat, INFO, LOBBY_LOCKED,
// HOST_MIGRATE) for the menu layer to react to.
type LobbyClient struct {
	conn net.Conn
	name string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending *pendingReply

	notices chan string
	done    chan struct{}
	once    sync.Once
}

// pendingReply routes reply lines for the request in flight. The protocol
// has no correlation IDs; the in-flight request claims matching verbs and
// everything else stays a notice.
type pendingReply struct {
	verbs []string
	rows  int // extra verbatim lines still expected (LOBBIES listing)
	lines chan string
}

func (p *pendingReply) claims(line string) bool {
	if p.rows > 0 {
		p.rows--
		return true
	}
	for _, verb := range p.verbs {
		if strings.HasPrefix(line, verb+" ") || line == verb {
			// A LOBBIES header claims its row lines too, before the
			// requester ever sees the count.
			if verb == protocol.ReplyLobbies {
				p.rows = countedRows(line)
			}
			return true
		}
	}
	return false
}

// DialLobby connects, performs the HELLO greeting, and starts the read
// loop. The returned client is ready for requests.
func DialLobby(addr, name string) (*LobbyClient, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial lobby %q: %w", addr, err)
	}
	reader := bufio.NewReader(conn)
	if _, err := conn.Write([]byte(protocol.EncodeHello(name) + "\n")); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}
	conn.SetReadDeadline(time.Now().Add(requestTimeout))
	greeting, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	if !strings.HasPrefix(greeting, protocol.ReplyWelcome) {
		conn.Close()
		return nil, fmt.Errorf("unexpected greeting %q", strings.TrimSpace(greeting))
	}

	c := &LobbyClient{
		conn:    conn,
		name:    name,
		notices: make(chan string, 32),
		done:    make(chan struct{}),
	}
	go c.readLoop(reader)
	return c, nil
}

// Notices delivers broadcast lines the menu layer should surface. When the
// buffer is full the oldest unread notice is dropped.
func (c *LobbyClient) Notices() <-chan string {
	return c.notices
}

// Register publishes a lobby and returns its server-assigned ID.
func (c *LobbyClient) Register(lobbyName string, udpPort, maxPlayers int) (uint64, error) {
	line := "HOST_REGISTER " + lobbyName + " " + strconv.Itoa(udpPort) + " " + strconv.Itoa(maxPlayers)
	reply, err := c.request(line, []string{protocol.ReplyHostRegistered, protocol.ReplyError}, 0)
	if err != nil {
		return 0, err
	}
	if err := replyError(reply[0]); err != nil {
		return 0, err
	}
	fields := strings.Fields(reply[0])
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed reply %q", reply[0])
	}
	return strconv.ParseUint(fields[1], 10, 64)
}

// Unregister withdraws a lobby.
func (c *LobbyClient) Unregister(id uint64) error {
	line := "HOST_UNREGISTER " + strconv.FormatUint(id, 10)
	reply, err := c.request(line, []string{protocol.ReplyHostUnregistered, protocol.ReplyError}, 0)
	if err != nil {
		return err
	}
	return replyError(reply[0])
}

// List fetches the lobby directory.
func (c *LobbyClient) List() ([]protocol.LobbyRow, error) {
	reply, err := c.request("HOST_LIST", []string{protocol.ReplyLobbies, protocol.ReplyError}, -1)
	if err != nil {
		return nil, err
	}
	if err := replyError(reply[0]); err != nil {
		return nil, err
	}
	rows := make([]protocol.LobbyRow, 0, len(reply)-1)
	for _, line := range reply[1:] {
		row, err := protocol.DecodeLobbyRow(line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Join asks for a lobby's UDP endpoint.
func (c *LobbyClient) Join(id uint64) (string, int, error) {
	line := "JOIN " + strconv.FormatUint(id, 10)
	reply, err := c.request(line, []string{protocol.ReplyJoinInfo, protocol.ReplyError}, 0)
	if err != nil {
		return "", 0, err
	}
	if err := replyError(reply[0]); err != nil {
		return "", 0, err
	}
	return protocol.DecodeJoinInfo(reply[0])
}

// Start locks a lobby at game start.
func (c *LobbyClient) Start(id uint64) error {
	line := "HOST_START " + strconv.FormatUint(id, 10)
	reply, err := c.request(line, []string{protocol.ReplyLobbyLocked, protocol.ReplyError}, 0)
	if err != nil {
		return err
	}
	return replyError(reply[0])
}

// AnnounceMigration reports where a freshly promoted host actually bound.
func (c *LobbyClient) AnnounceMigration(ip string, udpPort int) {
	c.send("HOST_MIGRATE " + c.name + " " + ip + " " + strconv.Itoa(udpPort))
}

// Say relays a chat line; fire and forget.
func (c *LobbyClient) Say(text string) {
	c.send("MSG:" + text)
}

// Close sends QUIT and tears the session down.
func (c *LobbyClient) Close() error {
	c.once.Do(func() {
		c.send("QUIT")
		close(c.done)
		c.conn.Close()
	})
	return nil
}

// request sends one line and collects its reply. extraRows -1 means the
// first reply line carries a count of verbatim lines to follow (LOBBIES).
func (c *LobbyClient) request(line string, verbs []string, extraRows int) ([]string, error) {
	pending := &pendingReply{verbs: verbs, lines: make(chan string, 8)}
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return nil, errors.New("request already in flight")
	}
	c.pending = pending
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
	}()

	if err := c.send(line); err != nil {
		return nil, err
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()

	var reply []string
	select {
	case first := <-pending.lines:
		reply = append(reply, first)
	case <-timer.C:
		return nil, ErrTimeout
	case <-c.done:
		return nil, net.ErrClosed
	}

	want := extraRows
	if extraRows == -1 {
		want = countedRows(reply[0])
	}
	for len(reply)-1 < want {
		select {
		case next := <-pending.lines:
			reply = append(reply, next)
		case <-timer.C:
			return nil, ErrTimeout
		case <-c.done:
			return nil, net.ErrClosed
		}
	}
	return reply, nil
}

func (c *LobbyClient) send(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

func (c *LobbyClient) readLoop(reader *bufio.Reader) {
	defer close(c.notices)
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		c.mu.Lock()
		pending := c.pending
		claimed := pending != nil && pending.claims(line)
		c.mu.Unlock()
		if claimed {
			select {
			case pending.lines <- line:
			default:
				// Requester gave up (timeout); drop rather than stall.
			}
			continue
		}
		select {
		case c.notices <- line:
		default:
			// Drop the oldest so fresh notices keep flowing.
			select {
			case <-c.notices:
			default:
			}
			select {
			case c.notices <- line:
			default:
			}
		}
	}
}

func replyError(line string) error {
	if rest, ok := strings.CutPrefix(line, protocol.ReplyError+" "); ok {
		return errors.New(rest)
	}
	return nil
}

func countedRows(header string) int {
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return 0
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
