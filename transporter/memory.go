package transporter

import (
	"context"
	"fmt"
	"sync"

	"github.com/disarticulate/moleculer/errors"
	"github.com/disarticulate/moleculer/packet"
)

// MemoryHub is an in-process message fabric for tests. Transporters created
// from the same hub see each other's published packets; delivery is
// synchronous on the publisher's goroutine.
type MemoryHub struct {
	mu   sync.RWMutex
	subs map[string][]*memorySubscription
}

type memorySubscription struct {
	owner   *MemoryTransporter
	command packet.Command
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[string][]*memorySubscription)}
}

// NewTransporter creates a transporter attached to this hub.
func (h *MemoryHub) NewTransporter(codec *packet.Codec) *MemoryTransporter {
	return &MemoryTransporter{hub: h, codec: codec, prefix: DefaultPrefix}
}

func (h *MemoryHub) subscribe(topic string, sub *memorySubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[topic] = append(h.subs[topic], sub)
}

func (h *MemoryHub) unsubscribeAll(owner *MemoryTransporter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, subs := range h.subs {
		kept := subs[:0]
		for _, sub := range subs {
			if sub.owner != owner {
				kept = append(kept, sub)
			}
		}
		h.subs[topic] = kept
	}
}

func (h *MemoryHub) dispatch(topic string, data []byte) {
	h.mu.RLock()
	subs := make([]*memorySubscription, len(h.subs[topic]))
	copy(subs, h.subs[topic])
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.owner.deliver(sub.command, data)
	}
}

// MemoryTransporter implements Transporter over a MemoryHub. It records
// enough bookkeeping for lifecycle tests: connect-failure injection and a
// counter of service-specific subscription calls.
type MemoryTransporter struct {
	hub    *MemoryHub
	codec  *packet.Codec
	prefix string

	nodeID    string
	handler   MessageHandler
	onConnect ConnectHandler

	mu              sync.Mutex
	connected       bool
	failConnects    int
	serviceSubCalls int
}

// Init binds the node identity and inbound callbacks.
func (t *MemoryTransporter) Init(nodeID string, handler MessageHandler, onConnect ConnectHandler) {
	t.nodeID = nodeID
	t.handler = handler
	t.onConnect = onConnect
}

// FailNextConnects makes the next n Connect calls fail. Test hook.
func (t *MemoryTransporter) FailNextConnects(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failConnects = n
}

// Connect brings the hub link up, honoring injected failures.
func (t *MemoryTransporter) Connect(_ context.Context) error {
	t.mu.Lock()
	if t.failConnects > 0 {
		t.failConnects--
		t.mu.Unlock()
		return errors.WrapTransient(
			fmt.Errorf("injected connect failure"),
			"MemoryTransporter", "Connect", "establish connection")
	}
	t.connected = true
	t.mu.Unlock()

	if t.onConnect != nil {
		t.onConnect(false)
	}
	return nil
}

// FireReconnect simulates a transporter-level link recovery. Test hook.
func (t *MemoryTransporter) FireReconnect() {
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()

	if t.onConnect != nil {
		t.onConnect(true)
	}
}

// Disconnect drops the link and all subscriptions.
func (t *MemoryTransporter) Disconnect(_ context.Context) error {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()

	t.hub.unsubscribeAll(t)
	return nil
}

// Connected reports whether the hub link is up.
func (t *MemoryTransporter) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Subscribe binds a command topic on the hub.
func (t *MemoryTransporter) Subscribe(_ context.Context, command packet.Command, nodeID string) error {
	if !t.Connected() {
		return errors.ErrNotConnected
	}

	topic := TopicName(t.prefix, command, nodeID)
	t.hub.subscribe(topic, &memorySubscription{owner: t, command: command})
	return nil
}

// Prepublish serializes a packet and dispatches it to topic subscribers.
func (t *MemoryTransporter) Prepublish(_ context.Context, p *packet.Packet) error {
	data, err := t.codec.Serialize(p)
	if err != nil {
		return err
	}

	if !t.Connected() {
		return errors.ErrNotConnected
	}

	t.hub.dispatch(TopicName(t.prefix, p.Command, p.Target), data)
	return nil
}

// MakeServiceSpecificSubscriptions records the call for test assertions.
func (t *MemoryTransporter) MakeServiceSpecificSubscriptions(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.serviceSubCalls++
	return nil
}

// ServiceSubscriptionCalls reports how many times service-specific
// subscriptions were requested. Test hook.
func (t *MemoryTransporter) ServiceSubscriptionCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.serviceSubCalls
}

func (t *MemoryTransporter) deliver(command packet.Command, data []byte) {
	if !t.Connected() || t.handler == nil {
		return
	}
	t.handler(command, data)
}
