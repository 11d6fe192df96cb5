// Package transporter abstracts the pub/sub wire under the transit layer.
// A Transporter binds inbound callbacks at init, connects, subscribes the
// node's topic set, and publishes serialized packets. The NATS transporter
// is the production implementation; the memory transporter backs tests.
package transporter

import (
	"context"
	"strings"

	"github.com/disarticulate/moleculer/packet"
)

// DefaultPrefix namespaces all transit subjects on the wire.
const DefaultPrefix = "MOL"

// MessageHandler receives every inbound packet: the command it arrived on
// and its raw payload bytes.
type MessageHandler func(command packet.Command, data []byte)

// ConnectHandler is invoked after the transporter link comes up.
// reconnected is false on the first connect and true on every recovery.
type ConnectHandler func(reconnected bool)

// Transporter is the pub/sub adapter consumed by the transit layer.
// Implementations must be safe for concurrent Prepublish and concurrent
// Subscribe (the core topic set is bound in parallel); Connect and
// Disconnect are sequenced by the lifecycle controller.
type Transporter interface {
	// Init binds the node identity and inbound callbacks. Must be called
	// once, before Connect.
	Init(nodeID string, handler MessageHandler, onConnect ConnectHandler)

	// Connect establishes the link. Implementations invoke the bound
	// ConnectHandler before returning on success.
	Connect(ctx context.Context) error

	// Disconnect tears the link down gracefully.
	Disconnect(ctx context.Context) error

	// Connected reports whether the link is up.
	Connected() bool

	// Subscribe binds a command topic. An empty nodeID subscribes the
	// broadcast form of the topic.
	Subscribe(ctx context.Context, command packet.Command, nodeID string) error

	// Prepublish serializes and sends a packet.
	Prepublish(ctx context.Context, p *packet.Packet) error

	// MakeServiceSpecificSubscriptions binds per-service topics. Invoked
	// before every broadcast of the node's INFO so that peers never learn
	// about service topics that are not yet live.
	MakeServiceSpecificSubscriptions(ctx context.Context) error
}

// TopicName builds the wire subject for a command, scoped to a node when
// nodeID is non-empty.
func TopicName(prefix string, command packet.Command, nodeID string) string {
	parts := []string{prefix, string(command)}
	if nodeID != "" {
		parts = append(parts, nodeID)
	}
	return strings.Join(parts, ".")
}
