package packet

import "encoding/json"

// Payload is implemented by every per-command payload struct. All payloads
// carry the common header: protocol version and originating node.
type Payload interface {
	// Version returns the protocol version tag of the payload.
	Version() string

	// SenderID returns the nodeID of the originating node.
	SenderID() string
}

// Header carries the fields common to all commands.
type Header struct {
	Ver    string `json:"ver"`
	Sender string `json:"sender"`
}

// NewHeader returns a header stamped with the local protocol version.
func NewHeader(sender string) Header {
	return Header{Ver: ProtocolVersion, Sender: sender}
}

// Version returns the protocol version tag of the payload.
func (h Header) Version() string { return h.Ver }

// SenderID returns the nodeID of the originating node.
func (h Header) SenderID() string { return h.Sender }

// EventPayload carries a service event, unicast or group-filtered.
type EventPayload struct {
	Header
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	Groups []string        `json:"groups,omitempty"`
}

// RequestPayload carries an outbound action call. ID is the correlation id
// matched against the eventual RESPONSE.
type RequestPayload struct {
	Header
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	Params    json.RawMessage `json:"params,omitempty"`
	Meta      map[string]any  `json:"meta,omitempty"`
	Timeout   float64         `json:"timeout,omitempty"`
	Level     int             `json:"level,omitempty"`
	Metrics   bool            `json:"metrics,omitempty"`
	ParentID  string          `json:"parentID,omitempty"`
	RequestID string          `json:"requestID,omitempty"`
}

// ErrorEnvelope is the wire form of a remote failure. Fields are copied
// verbatim when the receiving side reconstructs the error.
type ErrorEnvelope struct {
	Name    string          `json:"name"`
	Message string          `json:"message"`
	Code    int             `json:"code,omitempty"`
	Type    string          `json:"type,omitempty"`
	NodeID  string          `json:"nodeID,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Stack   string          `json:"stack,omitempty"`
}

// ResponsePayload answers a REQUEST. Exactly one of Data or Error is
// meaningful, selected by Success.
type ResponsePayload struct {
	Header
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorEnvelope  `json:"error,omitempty"`
}

// DiscoverPayload asks peers to introduce themselves with INFO.
type DiscoverPayload struct {
	Header
}

// ClientInfo describes the implementation running on a node.
type ClientInfo struct {
	Type        string `json:"type"`
	Version     string `json:"version"`
	LangVersion string `json:"langVersion"`
}

// InfoPayload is the node descriptor exchanged during discovery.
type InfoPayload struct {
	Header
	Services json.RawMessage `json:"services,omitempty"`
	IPList   []string        `json:"ipList,omitempty"`
	Hostname string          `json:"hostname,omitempty"`
	Client   ClientInfo      `json:"client"`
	Config   map[string]any  `json:"config,omitempty"`
}

// DisconnectPayload announces a graceful departure.
type DisconnectPayload struct {
	Header
}

// HeartbeatPayload carries periodic liveness with current CPU load.
type HeartbeatPayload struct {
	Header
	CPU float64 `json:"cpu"`
}

// PingPayload carries the sender's clock in epoch milliseconds.
type PingPayload struct {
	Header
	Time int64 `json:"time"`
}

// PongPayload echoes a PING's time and stamps the responder's receipt clock.
type PongPayload struct {
	Header
	Time    int64 `json:"time"`
	Arrived int64 `json:"arrived"`
}
