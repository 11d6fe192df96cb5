// Package packet defines the multi-command wire protocol spoken between
// peer nodes: the closed command set, the per-command payload shapes, the
// protocol version tag carried by every payload, and the codec that moves
// payloads through a serializer.
package packet

// ProtocolVersion is the wire protocol version stamped on every outgoing
// payload. Inbound payloads carrying any other version are dropped.
const ProtocolVersion = "4"

// Command tags a packet with its protocol command. The set is closed; each
// command has a fixed payload shape.
type Command string

// Protocol commands
const (
	CommandEvent      Command = "EVENT"
	CommandRequest    Command = "REQUEST"
	CommandResponse   Command = "RESPONSE"
	CommandDiscover   Command = "DISCOVER"
	CommandInfo       Command = "INFO"
	CommandDisconnect Command = "DISCONNECT"
	CommandHeartbeat  Command = "HEARTBEAT"
	CommandPing       Command = "PING"
	CommandPong       Command = "PONG"
)

// Commands lists every protocol command.
var Commands = []Command{
	CommandEvent,
	CommandRequest,
	CommandResponse,
	CommandDiscover,
	CommandInfo,
	CommandDisconnect,
	CommandHeartbeat,
	CommandPing,
	CommandPong,
}

// Valid reports whether c is a member of the closed command set.
func (c Command) Valid() bool {
	switch c {
	case CommandEvent, CommandRequest, CommandResponse, CommandDiscover,
		CommandInfo, CommandDisconnect, CommandHeartbeat, CommandPing, CommandPong:
		return true
	default:
		return false
	}
}

// Packet pairs a command with its payload and an optional target node.
// An empty Target means broadcast.
type Packet struct {
	Command Command
	Target  string
	Payload Payload
}

// New creates a packet for the given command, target node and payload.
func New(command Command, target string, payload Payload) *Packet {
	return &Packet{
		Command: command,
		Target:  target,
		Payload: payload,
	}
}
