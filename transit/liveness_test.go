package transit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disarticulate/moleculer/packet"
)

func TestPongComputesElapsedAndSkew(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())

	// Receive the PONG at t2 = 1100 ms
	h.transit.now = func() time.Time { return time.UnixMilli(1100) }

	h.inject(t, packet.CommandPong, &packet.PongPayload{
		Header:  packet.Header{Ver: packet.ProtocolVersion, Sender: "D"},
		Time:    1000,
		Arrived: 1040,
	})

	pongs := h.broker.localEventsNamed(EventNodePong)
	require.Len(t, pongs, 1)

	notice := pongs[0].data.(*PongNotification)
	assert.Equal(t, "D", notice.NodeID)
	assert.Equal(t, int64(100), notice.ElapsedTime)
	// round(1100 - 1040 - 100/2) = 10
	assert.Equal(t, int64(10), notice.TimeDiff)
}

func TestPongSkew_RemoteBehind(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())
	h.transit.now = func() time.Time { return time.UnixMilli(2000) }

	h.inject(t, packet.CommandPong, &packet.PongPayload{
		Header:  packet.Header{Ver: packet.ProtocolVersion, Sender: "D"},
		Time:    1900,
		Arrived: 1920,
	})

	pongs := h.broker.localEventsNamed(EventNodePong)
	require.Len(t, pongs, 1)

	notice := pongs[0].data.(*PongNotification)
	assert.Equal(t, int64(100), notice.ElapsedTime)
	// round(2000 - 1920 - 50) = 30
	assert.Equal(t, int64(30), notice.TimeDiff)
}

func TestPingAnsweredWithPong(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())
	peer := newCapture(t, h.hub, h.codec, "D", packet.CommandPong)

	// Respond at t1 = 1040 ms
	h.transit.now = func() time.Time { return time.UnixMilli(1040) }

	h.inject(t, packet.CommandPing, &packet.PingPayload{
		Header: packet.Header{Ver: packet.ProtocolVersion, Sender: "D"},
		Time:   1000,
	})

	pongs := peer.byCommand(packet.CommandPong)
	require.Len(t, pongs, 1)

	pong := pongs[0].(*packet.PongPayload)
	assert.Equal(t, int64(1000), pong.Time, "PONG echoes the PING clock")
	assert.Equal(t, int64(1040), pong.Arrived)
	assert.Equal(t, "node-a", pong.Sender)
}

func TestSendPing_StampsLocalClock(t *testing.T) {
	h := newHarness(t, "node-a", testOptions())
	peer := newCapture(t, h.hub, h.codec, "D", packet.CommandPing)

	h.transit.now = func() time.Time { return time.UnixMilli(1000) }
	require.NoError(t, h.transit.SendPing(context.Background(), "D"))

	pings := peer.byCommand(packet.CommandPing)
	require.Len(t, pings, 1)
	assert.Equal(t, int64(1000), pings[0].(*packet.PingPayload).Time)
}

func TestPingPongRoundTripOverWire(t *testing.T) {
	// Two full transit instances on one hub: A pings, D answers, A
	// broadcasts the local pong notice.
	a := newHarness(t, "node-A", testOptions())

	brokerD := newFakeBroker("node-D")
	registryD := &fakeRegistry{}
	txD := a.hub.NewTransporter(a.codec)
	d := New(brokerD, registryD, txD, a.codec, testOptions())
	require.NoError(t, d.Connect(context.Background()))

	require.NoError(t, a.transit.SendPing(context.Background(), "node-D"))

	eventually(t, func() bool {
		return len(a.broker.localEventsNamed(EventNodePong)) == 1
	}, "expected a $node.pong notice on node-A")

	notice := a.broker.localEventsNamed(EventNodePong)[0].data.(*PongNotification)
	assert.Equal(t, "node-D", notice.NodeID)
	assert.GreaterOrEqual(t, notice.ElapsedTime, int64(0))
}
