package transit

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disarticulate/moleculer/errors"
	"github.com/disarticulate/moleculer/packet"
)

func TestRequest_QueueFull(t *testing.T) {
	opts := testOptions()
	opts.MaxQueueSize = 2
	h := newHarness(t, "node-a", opts)
	ctx := context.Background()

	_, err := h.transit.Request(ctx, &Request{ID: "r1", Action: "a.one", NodeID: "B"})
	require.NoError(t, err)
	_, err = h.transit.Request(ctx, &Request{ID: "r2", Action: "a.two", NodeID: "B"})
	require.NoError(t, err)

	_, err = h.transit.Request(ctx, &Request{ID: "r3", Action: "a.three", NodeID: "B"})
	require.Error(t, err)

	var full *errors.QueueFullError
	require.ErrorAs(t, err, &full)
	assert.Equal(t, 2, full.Size)
	assert.Equal(t, 2, full.Limit)
	assert.Equal(t, 2, h.transit.PendingCount())
}

func TestRequest_GeneratesCorrelationID(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())

	req := &Request{Action: "math.add", NodeID: "B"}
	_, err := h.transit.Request(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, 1, h.transit.PendingCount())
}

func TestRequest_PublishesWirePayload(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())
	peer := newCapture(t, h.hub, h.codec, "B", packet.CommandRequest)

	_, err := h.transit.Request(context.Background(), &Request{
		ID:        "r1",
		Action:    "math.add",
		NodeID:    "B",
		Params:    []byte(`{"a":2,"b":3}`),
		Meta:      map[string]any{"tenant": "acme"},
		Level:     2,
		ParentID:  "r0",
		RequestID: "root",
	})
	require.NoError(t, err)

	requests := peer.byCommand(packet.CommandRequest)
	require.Len(t, requests, 1)
	wire := requests[0].(*packet.RequestPayload)
	assert.Equal(t, packet.ProtocolVersion, wire.Ver)
	assert.Equal(t, "node-a", wire.Sender)
	assert.Equal(t, "math.add", wire.Action)
	assert.JSONEq(t, `{"a":2,"b":3}`, string(wire.Params))
	assert.Equal(t, "r0", wire.ParentID)
}

func TestSendEvent_Unicast(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())
	peer := newCapture(t, h.hub, h.codec, "B", packet.CommandEvent)

	err := h.transit.SendEvent(context.Background(), "B", "user.created", map[string]any{"id": 42})
	require.NoError(t, err)

	events := peer.byCommand(packet.CommandEvent)
	require.Len(t, events, 1)
	event := events[0].(*packet.EventPayload)
	assert.Equal(t, "user.created", event.Event)
	assert.JSONEq(t, `{"id":42}`, string(event.Data))
	assert.Empty(t, event.Groups)
}

func TestSendBalancedEvent(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())
	peerB := newCapture(t, h.hub, h.codec, "B", packet.CommandEvent)
	peerC := newCapture(t, h.hub, h.codec, "C", packet.CommandEvent)

	err := h.transit.SendBalancedEvent(context.Background(), "order.placed", json.RawMessage(`{"n":1}`),
		map[string][]string{
			"B": {"mail"},
			"C": {"audit", "metrics"},
		})
	require.NoError(t, err)

	eventsB := peerB.byCommand(packet.CommandEvent)
	require.Len(t, eventsB, 1)
	assert.Equal(t, []string{"mail"}, eventsB[0].(*packet.EventPayload).Groups)

	eventsC := peerC.byCommand(packet.CommandEvent)
	require.Len(t, eventsC, 1)
	groups := eventsC[0].(*packet.EventPayload).Groups
	sort.Strings(groups)
	assert.Equal(t, []string{"audit", "metrics"}, groups)
}

func TestSendEventToGroups(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())
	peer := newCapture(t, h.hub, h.codec, "B", packet.CommandEvent)

	t.Run("explicit groups broadcast", func(t *testing.T) {
		err := h.transit.SendEventToGroups(context.Background(), "cache.clean", nil, []string{"cache"})
		require.NoError(t, err)

		events := peer.byCommand(packet.CommandEvent)
		require.Len(t, events, 1)
		assert.Equal(t, []string{"cache"}, events[0].(*packet.EventPayload).Groups)
	})

	t.Run("groups resolved via broker", func(t *testing.T) {
		h.broker.eventGroups["user.created"] = []string{"mail"}

		err := h.transit.SendEventToGroups(context.Background(), "user.created", nil, nil)
		require.NoError(t, err)
		assert.Len(t, peer.byCommand(packet.CommandEvent), 2)
	})

	t.Run("no groups anywhere is a no-op", func(t *testing.T) {
		sentBefore := h.transit.Stats().PacketsSent()

		err := h.transit.SendEventToGroups(context.Background(), "nobody.cares", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, sentBefore, h.transit.Stats().PacketsSent())
	})
}

func TestSendNodeInfo_BroadcastTriggersServiceSubscriptions(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())
	callsAfterConnect := h.tx.ServiceSubscriptionCalls()
	require.Equal(t, 1, callsAfterConnect, "handshake INFO broadcast binds service topics")

	// Broadcast form binds service topics again (new services may exist)
	require.NoError(t, h.transit.SendNodeInfo(context.Background(), ""))
	assert.Equal(t, callsAfterConnect+1, h.tx.ServiceSubscriptionCalls())

	// Targeted form does not
	require.NoError(t, h.transit.SendNodeInfo(context.Background(), "B"))
	assert.Equal(t, callsAfterConnect+1, h.tx.ServiceSubscriptionCalls())
}

func TestSendDisconnectAndHeartbeatPayloads(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())
	peer := newCapture(t, h.hub, h.codec, "B",
		packet.CommandDisconnect, packet.CommandHeartbeat)

	require.NoError(t, h.transit.SendHeartbeat(context.Background(), 42.5))
	require.NoError(t, h.transit.SendDisconnectPacket(context.Background()))

	heartbeats := peer.byCommand(packet.CommandHeartbeat)
	require.Len(t, heartbeats, 1)
	assert.Equal(t, 42.5, heartbeats[0].(*packet.HeartbeatPayload).CPU)

	require.Len(t, peer.byCommand(packet.CommandDisconnect), 1)
}

func TestStatsCountEveryPublishedPacket(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())
	base := h.transit.Stats().PacketsSent()
	ctx := context.Background()

	require.NoError(t, h.transit.SendPing(ctx, ""))
	require.NoError(t, h.transit.SendHeartbeat(ctx, 1))
	require.NoError(t, h.transit.DiscoverNode(ctx, "B"))

	assert.Equal(t, base+3, h.transit.Stats().PacketsSent())
}

func TestRemovePendingRequest_CallerTimeout(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())

	done, err := h.transit.Request(context.Background(), &Request{ID: "r1", Action: "slow.op", NodeID: "B"})
	require.NoError(t, err)

	// Broker-side timeout fires: entry is dropped without completion
	h.transit.RemovePendingRequest("r1")
	assert.Equal(t, 0, h.transit.PendingCount())

	// A response arriving afterwards is a table miss
	h.inject(t, packet.CommandResponse, &packet.ResponsePayload{
		Header:  packet.Header{Ver: packet.ProtocolVersion, Sender: "B"},
		ID:      "r1",
		Success: true,
	})

	select {
	case result := <-done:
		t.Fatalf("completion after removal: %+v", result)
	default:
	}
}
