package transit

import (
	"context"
	"encoding/json"

	"github.com/disarticulate/moleculer/logging"
	"github.com/disarticulate/moleculer/packet"
)

// Local lifecycle events broadcast through the Broker.
const (
	// EventConnected is broadcast after the post-connect handshake settles.
	EventConnected = "$transporter.connected"
	// EventDisconnected is broadcast when a graceful disconnect begins.
	EventDisconnected = "$transporter.disconnected"
	// EventNodePong is broadcast when a PONG round trip completes.
	EventNodePong = "$node.pong"
)

// ConnectedNotification is the payload of EventConnected.
type ConnectedNotification struct {
	Reconnected bool `json:"reconnected"`
}

// DisconnectedNotification is the payload of EventDisconnected.
type DisconnectedNotification struct {
	Graceful bool `json:"graceful"`
}

// PongNotification is the payload of EventNodePong. ElapsedTime is the
// round trip in milliseconds; TimeDiff is the estimated amount in
// milliseconds by which our clock is ahead of the remote node's (positive
// when the remote clock is behind).
type PongNotification struct {
	NodeID      string `json:"nodeID"`
	ElapsedTime int64  `json:"elapsedTime"`
	TimeDiff    int64  `json:"timeDiff"`
}

// Broker is the local service broker consumed by the transit layer. Transit
// hands inbound REQUEST payloads to the broker verbatim; rebuilding a caller
// context from the wire payload is the broker's responsibility.
type Broker interface {
	// NodeID returns the stable identity of this node.
	NodeID() string

	// GetLogger returns a named logger.
	GetLogger(name string) logging.Logger

	// BroadcastLocal delivers a local-only event to subscribers on this node.
	BroadcastLocal(event string, data any)

	// HandleRemoteRequest executes an action call received from a peer and
	// returns its result or error.
	HandleRemoteRequest(ctx context.Context, payload *packet.RequestPayload) (any, error)

	// EmitLocalServices dispatches a remote event to local services.
	EmitLocalServices(event string, data json.RawMessage, groups []string, sender string)

	// GetLocalNodeInfo returns the node descriptor broadcast in INFO.
	GetLocalNodeInfo() *packet.InfoPayload

	// GetEventGroups resolves the balancing groups registered for an event.
	GetEventGroups(event string) []string
}

// Registry is the peer node table consumed by the transit layer.
type Registry interface {
	// ProcessNodeInfo records or refreshes a peer's descriptor.
	ProcessNodeInfo(sender string, info *packet.InfoPayload)

	// NodeDisconnected marks a peer as gone.
	NodeDisconnected(nodeID string)

	// NodeHeartbeat records a peer heartbeat.
	NodeHeartbeat(sender string, heartbeat *packet.HeartbeatPayload)
}
