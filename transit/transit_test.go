package transit

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/disarticulate/moleculer/logging"
	"github.com/disarticulate/moleculer/packet"
	"github.com/disarticulate/moleculer/serializer"
	"github.com/disarticulate/moleculer/transporter"
)

// localEvent records a BroadcastLocal call.
type localEvent struct {
	event string
	data  any
}

// emittedEvent records an EmitLocalServices call.
type emittedEvent struct {
	event  string
	data   json.RawMessage
	groups []string
	sender string
}

type fakeBroker struct {
	mu          sync.Mutex
	nodeID      string
	localEvents []localEvent
	emitted     []emittedEvent
	handleFn    func(payload *packet.RequestPayload) (any, error)
	info        *packet.InfoPayload
	eventGroups map[string][]string
}

func newFakeBroker(nodeID string) *fakeBroker {
	return &fakeBroker{
		nodeID: nodeID,
		info: &packet.InfoPayload{
			Services: json.RawMessage(`[{"name":"math"}]`),
			Client:   packet.ClientInfo{Type: "go", Version: "0.1.0"},
		},
		eventGroups: make(map[string][]string),
	}
}

func (b *fakeBroker) NodeID() string { return b.nodeID }

func (b *fakeBroker) GetLogger(string) logging.Logger { return logging.Nop() }

func (b *fakeBroker) BroadcastLocal(event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.localEvents = append(b.localEvents, localEvent{event, data})
}

func (b *fakeBroker) HandleRemoteRequest(_ context.Context, payload *packet.RequestPayload) (any, error) {
	b.mu.Lock()
	fn := b.handleFn
	b.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(payload)
}

func (b *fakeBroker) EmitLocalServices(event string, data json.RawMessage, groups []string, sender string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitted = append(b.emitted, emittedEvent{event, data, groups, sender})
}

func (b *fakeBroker) GetLocalNodeInfo() *packet.InfoPayload { return b.info }

func (b *fakeBroker) GetEventGroups(event string) []string { return b.eventGroups[event] }

func (b *fakeBroker) localEventsNamed(name string) []localEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []localEvent
	for _, e := range b.localEvents {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

func (b *fakeBroker) emittedEvents() []emittedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]emittedEvent(nil), b.emitted...)
}

type fakeRegistry struct {
	mu            sync.Mutex
	infos         []string
	disconnected  []string
	heartbeats    []string
	lastInfo      *packet.InfoPayload
	lastHeartbeat *packet.HeartbeatPayload
}

func (r *fakeRegistry) ProcessNodeInfo(sender string, info *packet.InfoPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, sender)
	r.lastInfo = info
}

func (r *fakeRegistry) NodeDisconnected(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, nodeID)
}

func (r *fakeRegistry) NodeHeartbeat(sender string, heartbeat *packet.HeartbeatPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats = append(r.heartbeats, sender)
	r.lastHeartbeat = heartbeat
}

func (r *fakeRegistry) heartbeatSenders() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.heartbeats...)
}

func (r *fakeRegistry) disconnectedNodes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.disconnected...)
}

// capture is a raw hub peer recording every packet on the topics it binds.
type capture struct {
	mu      sync.Mutex
	codec   *packet.Codec
	packets []capturedPacket
}

type capturedPacket struct {
	command packet.Command
	payload packet.Payload
}

func newCapture(t *testing.T, hub *transporter.MemoryHub, codec *packet.Codec, nodeID string, bindings ...packet.Command) *capture {
	t.Helper()
	c := &capture{codec: codec}

	tx := hub.NewTransporter(codec)
	tx.Init(nodeID, func(command packet.Command, data []byte) {
		payload, err := codec.Deserialize(command, data)
		if err != nil {
			return
		}
		c.mu.Lock()
		c.packets = append(c.packets, capturedPacket{command, payload})
		c.mu.Unlock()
	}, nil)
	require.NoError(t, tx.Connect(context.Background()))

	for _, command := range bindings {
		require.NoError(t, tx.Subscribe(context.Background(), command, ""))
		require.NoError(t, tx.Subscribe(context.Background(), command, nodeID))
	}
	return c
}

func (c *capture) byCommand(command packet.Command) []packet.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []packet.Payload
	for _, p := range c.packets {
		if p.command == command {
			out = append(out, p.payload)
		}
	}
	return out
}

// harness wires a connected transit over a memory hub.
type harness struct {
	transit  *Transit
	broker   *fakeBroker
	registry *fakeRegistry
	tx       *transporter.MemoryTransporter
	hub      *transporter.MemoryHub
	codec    *packet.Codec
}

func testOptions() Options {
	return Options{
		ReconnectDelay: time.Millisecond,
		HandshakeGrace: time.Millisecond,
		Logger:         logging.Nop(),
	}
}

func newHarness(t *testing.T, nodeID string, opts Options) *harness {
	t.Helper()
	codec := packet.NewCodec(serializer.NewJSON())
	hub := transporter.NewMemoryHub()
	tx := hub.NewTransporter(codec)
	broker := newFakeBroker(nodeID)
	registry := &fakeRegistry{}

	tr := New(broker, registry, tx, codec, opts)
	require.NoError(t, tr.Connect(context.Background()))

	return &harness{transit: tr, broker: broker, registry: registry, tx: tx, hub: hub, codec: codec}
}

// inject delivers an inbound packet straight into the dispatcher.
func (h *harness) inject(t *testing.T, command packet.Command, payload packet.Payload) {
	t.Helper()
	data, err := h.codec.Serialize(packet.New(command, "", payload))
	require.NoError(t, err)
	h.transit.OnMessage(command, data)
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}
