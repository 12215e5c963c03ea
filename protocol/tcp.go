package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is the closed set of client lines the lobby server accepts. Lines
// are decoded once at the connection boundary; everything past that point
// switches on the variant, never on raw strings.
type Command interface{ isCommand() }

type (
	// CmdHello opens a session; must be the first line on the wire.
	CmdHello struct{ Name string }
	// CmdList asks for the connected player roster.
	CmdList struct{}
	// CmdMsg relays a chat line to every other session.
	CmdMsg struct{ Text string }
	// CmdQuit closes the session cleanly.
	CmdQuit struct{}
	// CmdHostRegister publishes a lobby hosted by this session.
	CmdHostRegister struct {
		Name       string
		UDPPort    int
		MaxPlayers int
	}
	// CmdHostUnregister withdraws a lobby.
	CmdHostUnregister struct{ ID uint64 }
	// CmdHostList asks for the lobby directory.
	CmdHostList struct{}
	// CmdJoin asks for a lobby's UDP endpoint.
	CmdJoin struct{ ID uint64 }
	// CmdHostStart locks a lobby at game start.
	CmdHostStart struct{ ID uint64 }
	// CmdHostMigrate is relayed by the migration flow to re-point a session.
	CmdHostMigrate struct {
		Owner   string
		IP      string
		UDPPort int
	}
)

func (CmdHello) isCommand()          {}
func (CmdList) isCommand()           {}
func (CmdMsg) isCommand()            {}
func (CmdQuit) isCommand()           {}
func (CmdHostRegister) isCommand()   {}
func (CmdHostUnregister) isCommand() {}
func (CmdHostList) isCommand()       {}
func (CmdJoin) isCommand()           {}
func (CmdHostStart) isCommand()      {}
func (CmdHostMigrate) isCommand()    {}

// DefaultMaxPlayers applies when HOST_REGISTER omits the optional cap.
const DefaultMaxPlayers = 8

// ParseCommand decodes one client line. The grammar is mixed by history:
// HELLO and MSG carry their payload after a colon, the lobby verbs are
// space-delimited. Extra trailing tokens on space-delimited verbs are
// ignored.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if rest, ok := strings.CutPrefix(line, MsgHello+":"); ok {
		if rest == "" {
			return nil, ErrMissingFields
		}
		return CmdHello{Name: rest}, nil
	}
	if rest, ok := strings.CutPrefix(line, "MSG:"); ok {
		return CmdMsg{Text: rest}, nil
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrMissingFields
	}
	switch fields[0] {
	case "LIST":
		return CmdList{}, nil
	case "QUIT":
		return CmdQuit{}, nil
	case "HOST_LIST":
		return CmdHostList{}, nil
	case "HOST_REGISTER":
		if len(fields) < 3 {
			return nil, ErrMissingFields
		}
		port, err := parsePort(fields[2])
		if err != nil {
			return nil, err
		}
		cmd := CmdHostRegister{Name: fields[1], UDPPort: port, MaxPlayers: DefaultMaxPlayers}
		if len(fields) >= 4 {
			max, err := strconv.Atoi(fields[3])
			if err != nil || max <= 0 {
				return nil, fmt.Errorf("%w: max %q", ErrBadField, fields[3])
			}
			cmd.MaxPlayers = max
		}
		return cmd, nil
	case "HOST_UNREGISTER":
		id, err := parseLobbyID(fields)
		if err != nil {
			return nil, err
		}
		return CmdHostUnregister{ID: id}, nil
	case "JOIN":
		id, err := parseLobbyID(fields)
		if err != nil {
			return nil, err
		}
		return CmdJoin{ID: id}, nil
	case "HOST_START":
		id, err := parseLobbyID(fields)
		if err != nil {
			return nil, err
		}
		return CmdHostStart{ID: id}, nil
	case "HOST_MIGRATE":
		if len(fields) < 4 {
			return nil, ErrMissingFields
		}
		port, err := parsePort(fields[3])
		if err != nil {
			return nil, err
		}
		return CmdHostMigrate{Owner: fields[1], IP: fields[2], UDPPort: port}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrBadPrefix, fields[0])
}

func parseLobbyID(fields []string) (uint64, error) {
	if len(fields) < 2 {
		return 0, ErrMissingFields
	}
	id, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: lobby id %q", ErrBadField, fields[1])
	}
	return id, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%w: udp port %q", ErrBadField, s)
	}
	return port, nil
}

// LobbyRow is one line of a LOBBIES listing.
type LobbyRow struct {
	ID         uint64
	Name       string
	IP         string
	UDPPort    int
	MaxPlayers int
	CurPlayers int
	Locked     bool
}

// EncodeLobbyRow renders id|name|ip|udpPort|max|cur|locked.
func EncodeLobbyRow(row LobbyRow) string {
	locked := "0"
	if row.Locked {
		locked = "1"
	}
	return strings.Join([]string{
		strconv.FormatUint(row.ID, 10),
		row.Name,
		row.IP,
		strconv.Itoa(row.UDPPort),
		strconv.Itoa(row.MaxPlayers),
		strconv.Itoa(row.CurPlayers),
		locked,
	}, "|")
}

// DecodeLobbyRow parses one LOBBIES row; trailing extra fields are ignored.
func DecodeLobbyRow(line string) (LobbyRow, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "|")
	if len(fields) < 7 {
		return LobbyRow{}, ErrMissingFields
	}
	id, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return LobbyRow{}, fmt.Errorf("%w: id %q", ErrBadField, fields[0])
	}
	port, err := parsePort(fields[3])
	if err != nil {
		return LobbyRow{}, err
	}
	max, err := strconv.Atoi(fields[4])
	if err != nil {
		return LobbyRow{}, fmt.Errorf("%w: max %q", ErrBadField, fields[4])
	}
	cur, err := strconv.Atoi(fields[5])
	if err != nil {
		return LobbyRow{}, fmt.Errorf("%w: cur %q", ErrBadField, fields[5])
	}
	locked, err := strconv.ParseBool(fields[6])
	if err != nil {
		return LobbyRow{}, fmt.Errorf("%w: locked %q", ErrBadField, fields[6])
	}
	return LobbyRow{
		ID:         id,
		Name:       fields[1],
		IP:         fields[2],
		UDPPort:    port,
		MaxPlayers: max,
		CurPlayers: cur,
		Locked:     locked,
	}, nil
}

// Reply encoders. Replies are one line each; the caller appends the newline
// when writing.

func EncodeError(text string) string {
	return ReplyError + " " + text
}

func EncodeInfo(text string) string {
	return ReplyInfo + " " + text
}

func EncodeSay(from, text string) string {
	return ReplySay + " " + from + ": " + text
}

func EncodeHostRegistered(id uint64) string {
	return ReplyHostRegistered + " " + strconv.FormatUint(id, 10)
}

func EncodeHostUnregistered(id uint64) string {
	return ReplyHostUnregistered + " " + strconv.FormatUint(id, 10)
}

func EncodeLobbiesHeader(n int) string {
	return ReplyLobbies + " " + strconv.Itoa(n)
}

func EncodeJoinInfo(ip string, udpPort int) string {
	return ReplyJoinInfo + " " + ip + " " + strconv.Itoa(udpPort)
}

func EncodeLobbyLocked(id uint64) string {
	return ReplyLobbyLocked + " " + strconv.FormatUint(id, 10)
}

func EncodeHostMigrate(owner, ip string, udpPort int) string {
	return ReplyHostMigrate + " " + owner + " " + ip + " " + strconv.Itoa(udpPort)
}

// DecodeJoinInfo parses a JOIN_INFO reply on the client side.
func DecodeJoinInfo(line string) (string, int, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != ReplyJoinInfo {
		return "", 0, ErrBadPrefix
	}
	if len(fields) < 3 {
		return "", 0, ErrMissingFields
	}
	port, err := parsePort(fields[2])
	if err != nil {
		return "", 0, err
	}
	return fields[1], port, nil
}

// DecodeHostMigrate parses a HOST_MIGRATE notice on the client side.
func DecodeHostMigrate(line string) (owner, ip string, udpPort int, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != ReplyHostMigrate {
		return "", "", 0, ErrBadPrefix
	}
	if len(fields) < 4 {
		return "", "", 0, ErrMissingFields
	}
	port, err := parsePort(fields[3])
	if err != nil {
		return "", "", 0, err
	}
	return fields[1], fields[2], port, nil
}
