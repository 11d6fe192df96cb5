package transit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/disarticulate/moleculer/errors"
	"github.com/disarticulate/moleculer/packet"
)

// OnMessage is the single entry point for inbound packets. Malformed and
// stale-version packets are logged and dropped, self-echoed packets are
// dropped silently; handler failures never escape, so a bad peer cannot
// take the node down.
func (t *Transit) OnMessage(command packet.Command, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Errorf("Panic while processing %s packet: %v (raw: %s)", command, r, data)
		}
	}()

	if len(data) == 0 {
		t.logger.Errorf("Missing %s packet", command)
		t.dropPacket("missing_packet")
		return
	}

	payload, err := t.codec.Deserialize(command, data)
	if err != nil {
		t.logger.Errorf("Failed to decode %s packet: %v (raw: %s)", command, err, data)
		t.dropPacket("decode_error")
		return
	}

	t.stats.packetsReceived.Add(1)
	if t.metrics != nil {
		t.metrics.RecordPacketReceived(string(command))
	}

	if err := t.codec.CheckVersion(payload); err != nil {
		t.logger.Errorf("Dropped %s packet: %v", command, err)
		t.dropPacket("version_mismatch")
		return
	}

	sender := payload.SenderID()

	// Our own discovery, liveness and info echoes are suppressed. EVENT,
	// REQUEST and RESPONSE from ourselves stay processable: an external
	// balancer may loop them back.
	if sender == t.nodeID {
		switch command {
		case packet.CommandEvent, packet.CommandRequest, packet.CommandResponse:
		default:
			return
		}
	}

	if err := t.route(command, sender, payload); err != nil {
		t.logger.Errorf("Failed to process %s packet from %q: %v (raw: %s)", command, sender, err, data)
	}
}

func (t *Transit) route(command packet.Command, sender string, payload packet.Payload) error {
	ctx := context.Background()

	switch command {
	case packet.CommandRequest:
		return t.handleRequest(ctx, payload.(*packet.RequestPayload))
	case packet.CommandResponse:
		t.handleResponse(payload.(*packet.ResponsePayload))
		return nil
	case packet.CommandEvent:
		p := payload.(*packet.EventPayload)
		t.broker.EmitLocalServices(p.Event, p.Data, p.Groups, sender)
		return nil
	case packet.CommandDiscover:
		return t.SendNodeInfo(ctx, sender)
	case packet.CommandInfo:
		t.registry.ProcessNodeInfo(sender, payload.(*packet.InfoPayload))
		return nil
	case packet.CommandDisconnect:
		t.registry.NodeDisconnected(sender)
		t.CancelPendingByNode(sender)
		return nil
	case packet.CommandHeartbeat:
		t.registry.NodeHeartbeat(sender, payload.(*packet.HeartbeatPayload))
		return nil
	case packet.CommandPing:
		return t.sendPong(ctx, sender, payload.(*packet.PingPayload).Time)
	case packet.CommandPong:
		t.handlePong(sender, payload.(*packet.PongPayload))
		return nil
	default:
		return fmt.Errorf("unhandled command %q", command)
	}
}

// handleRequest runs the remote call through the broker and answers with a
// RESPONSE either way. The wire payload goes to the broker verbatim; caller
// context reconstruction is the broker's job.
func (t *Transit) handleRequest(ctx context.Context, p *packet.RequestPayload) error {
	result, err := t.broker.HandleRemoteRequest(ctx, p)
	return t.SendResponse(ctx, p.Sender, p.ID, result, err)
}

// handleResponse resolves the pending entry correlated by id. An unknown id
// means the entry already timed out or was swept; the response is dropped.
func (t *Transit) handleResponse(p *packet.ResponsePayload) {
	if p.Success {
		if !t.pending.CompleteSuccess(p.ID, p.Data) {
			t.logger.Debugf("Orphan response for request %q, dropped", p.ID)
		}
		return
	}

	remote := &errors.RemoteError{
		Name:   "Error",
		Code:   500,
		NodeID: p.Sender,
	}
	if p.Error != nil {
		remote.Name = p.Error.Name
		remote.Message = p.Error.Message
		remote.Code = p.Error.Code
		remote.Type = p.Error.Type
		remote.Data = p.Error.Data
		remote.Stack = p.Error.Stack
		if p.Error.NodeID != "" {
			remote.NodeID = p.Error.NodeID
		}
	}
	remote.Message = fmt.Sprintf("%s (NodeID: %s)", remote.Message, p.Sender)

	if !t.pending.CompleteFailure(p.ID, remote) {
		t.logger.Debugf("Orphan response for request %q, dropped", p.ID)
	}
}

// handlePong closes a PING round trip: computes the elapsed time, estimates
// the clock offset under a symmetric-latency assumption, and broadcasts the
// local $node.pong notice.
func (t *Transit) handlePong(sender string, p *packet.PongPayload) {
	received := t.nowMillis()
	elapsed := received - p.Time
	diff := int64(math.Round(float64(received-p.Arrived) - float64(elapsed)/2))

	if t.metrics != nil {
		t.metrics.RecordPongRoundTrip(millisToDuration(elapsed))
	}

	t.broker.BroadcastLocal(EventNodePong, &PongNotification{
		NodeID:      sender,
		ElapsedTime: elapsed,
		TimeDiff:    diff,
	})
}

func millisToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (t *Transit) dropPacket(reason string) {
	if t.metrics != nil {
		t.metrics.RecordPacketDropped(reason)
	}
}
