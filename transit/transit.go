// Package transit translates a service broker's local calls, events and
// lifecycle signals into the pub/sub wire protocol tying peer nodes into one
// logical mesh. It owns the packet protocol and its versioning, the
// pending-request correlation table, the connection and subscription
// lifecycle, and the peer discovery and liveness loop.
package transit

import (
	"sync"
	"time"

	"github.com/disarticulate/moleculer/config"
	"github.com/disarticulate/moleculer/logging"
	"github.com/disarticulate/moleculer/metric"
	"github.com/disarticulate/moleculer/packet"
	"github.com/disarticulate/moleculer/transporter"
)

// Options configures a Transit instance.
type Options struct {
	// MaxQueueSize caps in-flight outbound requests. Zero means unbounded.
	MaxQueueSize int

	// ReconnectDelay is the base wait between transporter connect attempts.
	ReconnectDelay time.Duration

	// ReconnectBackoffFactor multiplies the delay after each failed attempt.
	// 1.0 keeps a fixed interval.
	ReconnectBackoffFactor float64

	// ReconnectMaxDelay caps the backoff.
	ReconnectMaxDelay time.Duration

	// HandshakeGrace is the settle window after DISCOVER/INFO before the
	// node declares itself connected.
	HandshakeGrace time.Duration

	// HeartbeatInterval is the period of the HEARTBEAT broadcast loop.
	// Zero disables the loop.
	HeartbeatInterval time.Duration

	// CPULoad supplies the load figure carried in HEARTBEAT packets.
	CPULoad func() float64

	// Logger overrides the broker-provided logger.
	Logger logging.Logger

	// Metrics, when non-nil, observes packet and connection activity.
	Metrics *metric.Metrics
}

// NewOptions derives transit options from a loaded configuration.
func NewOptions(cfg config.TransitConfig) Options {
	return Options{
		MaxQueueSize:           cfg.MaxQueueSize,
		ReconnectDelay:         cfg.ReconnectDelay,
		ReconnectBackoffFactor: cfg.ReconnectBackoffFactor,
		ReconnectMaxDelay:      cfg.ReconnectMaxDelay,
		HandshakeGrace:         cfg.HandshakeGrace,
		HeartbeatInterval:      cfg.HeartbeatInterval,
	}
}

// Transit is the wire-protocol bridge between the local broker and remote
// peers. Create one per node with New, then Connect it.
type Transit struct {
	broker   Broker
	registry Registry
	tx       transporter.Transporter
	codec    *packet.Codec
	logger   logging.Logger
	metrics  *metric.Metrics
	opts     Options

	nodeID  string
	pending *pendingStore
	stats   Stats
	ready   *readyGate

	mu            sync.Mutex
	connected     bool
	disconnecting bool
	heartbeatStop chan struct{}

	// now is the clock source; swapped in liveness tests
	now func() time.Time
}

// New wires a transit instance to its collaborators and binds the inbound
// callbacks on the transporter. The transporter is not connected yet.
func New(broker Broker, registry Registry, tx transporter.Transporter, codec *packet.Codec, opts Options) *Transit {
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = config.DefaultReconnectDelay
	}
	if opts.ReconnectBackoffFactor == 0 {
		opts.ReconnectBackoffFactor = 1.0
	}
	if opts.HandshakeGrace == 0 {
		opts.HandshakeGrace = config.DefaultHandshakeGrace
	}

	logger := opts.Logger
	if logger == nil {
		logger = broker.GetLogger("transit")
	}

	t := &Transit{
		broker:   broker,
		registry: registry,
		tx:       tx,
		codec:    codec,
		logger:   logger,
		metrics:  opts.Metrics,
		opts:     opts,
		nodeID:   broker.NodeID(),
		ready:    newReadyGate(),
		now:      time.Now,
	}

	var onSize func(int)
	if t.metrics != nil {
		onSize = t.metrics.RecordPendingRequests
	}
	t.pending = newPendingStore(opts.MaxQueueSize, onSize)

	tx.Init(t.nodeID, t.OnMessage, t.onTransporterConnect)
	return t
}

// NodeID returns the local node identity.
func (t *Transit) NodeID() string {
	return t.nodeID
}

// Stats returns the packet counters.
func (t *Transit) Stats() *Stats {
	return &t.stats
}

// PendingCount returns the current pending-request table occupancy.
func (t *Transit) PendingCount() int {
	return t.pending.Len()
}

// Connected reports whether the post-connect handshake has completed and
// the node is part of the mesh.
func (t *Transit) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Ready reports whether the subscription barrier has resolved.
func (t *Transit) Ready() bool {
	return t.ready.Resolved()
}

// RemovePendingRequest drops an in-flight request without completing it.
// Called by the broker when a caller-side timeout fires.
func (t *Transit) RemovePendingRequest(id string) {
	t.pending.Remove(id)
}

// CancelPendingByNode sweeps all pending requests targeted at nodeID,
// rejecting each with RequestRejected. Called when a peer is lost.
func (t *Transit) CancelPendingByNode(nodeID string) int {
	swept := t.pending.CancelByNode(nodeID)
	if swept > 0 {
		t.logger.Printf("Cancelled %d pending requests to node %q", swept, nodeID)
	}
	return swept
}

func (t *Transit) nowMillis() int64 {
	return t.now().UnixMilli()
}

func (t *Transit) isDisconnecting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnecting
}

func (t *Transit) setConnected(connected bool) {
	t.mu.Lock()
	t.connected = connected
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordConnected(connected)
	}
}
