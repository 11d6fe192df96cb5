package transit

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/disarticulate/moleculer/errors"
	"github.com/disarticulate/moleculer/packet"
)

// Request describes an outbound action call. ID is the correlation id; when
// empty, one is generated. NodeID is the target peer chosen by the caller's
// balancer.
type Request struct {
	ID        string
	Action    string
	NodeID    string
	Params    []byte
	Meta      map[string]any
	Timeout   time.Duration
	Level     int
	Metrics   bool
	ParentID  string
	RequestID string
}

// Request registers a pending entry and publishes a REQUEST packet. The
// returned channel delivers exactly one Result when the RESPONSE arrives or
// the entry is swept. Timeouts are owned by the caller: cancel with
// RemovePendingRequest.
func (t *Transit) Request(ctx context.Context, req *Request) (<-chan Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	p := newPendingRequest(req.ID, req.Action, req.NodeID)
	if err := t.pending.Insert(p); err != nil {
		return nil, err
	}

	payload := &packet.RequestPayload{
		Header:    packet.NewHeader(t.nodeID),
		ID:        req.ID,
		Action:    req.Action,
		Params:    req.Params,
		Meta:      req.Meta,
		Timeout:   float64(req.Timeout.Milliseconds()),
		Level:     req.Level,
		Metrics:   req.Metrics,
		ParentID:  req.ParentID,
		RequestID: req.RequestID,
	}

	if err := t.publish(ctx, packet.New(packet.CommandRequest, req.NodeID, payload)); err != nil {
		t.pending.Remove(req.ID)
		return nil, err
	}
	return p.done, nil
}

// SendResponse answers a remote REQUEST. A nil handlerErr publishes a
// success response carrying data; otherwise a failure response carrying the
// error envelope.
func (t *Transit) SendResponse(ctx context.Context, nodeID, id string, data any, handlerErr error) error {
	payload := &packet.ResponsePayload{
		Header: packet.NewHeader(t.nodeID),
		ID:     id,
	}

	if handlerErr != nil {
		payload.Error = t.errorToEnvelope(handlerErr)
	} else {
		raw, err := t.codec.MarshalData(data)
		if err != nil {
			return err
		}
		payload.Success = true
		payload.Data = raw
	}

	return t.publish(ctx, packet.New(packet.CommandResponse, nodeID, payload))
}

// SendEvent publishes a unicast event to one peer.
func (t *Transit) SendEvent(ctx context.Context, nodeID, event string, data any) error {
	raw, err := t.codec.MarshalData(data)
	if err != nil {
		return err
	}

	payload := &packet.EventPayload{
		Header: packet.NewHeader(t.nodeID),
		Event:  event,
		Data:   raw,
	}
	return t.publish(ctx, packet.New(packet.CommandEvent, nodeID, payload))
}

// SendBalancedEvent publishes one unicast EVENT per target node, each
// carrying the groups list the receiving peer filters on locally.
func (t *Transit) SendBalancedEvent(ctx context.Context, event string, data any, nodeGroups map[string][]string) error {
	raw, err := t.codec.MarshalData(data)
	if err != nil {
		return err
	}

	for nodeID, groups := range nodeGroups {
		payload := &packet.EventPayload{
			Header: packet.NewHeader(t.nodeID),
			Event:  event,
			Data:   raw,
			Groups: groups,
		}
		if err := t.publish(ctx, packet.New(packet.CommandEvent, nodeID, payload)); err != nil {
			return err
		}
	}
	return nil
}

// SendEventToGroups broadcasts an event to the given groups. Empty groups
// resolve through the broker's event-group table; when the table has no
// entry either, nothing is published.
func (t *Transit) SendEventToGroups(ctx context.Context, event string, data any, groups []string) error {
	if len(groups) == 0 {
		groups = t.broker.GetEventGroups(event)
	}
	if len(groups) == 0 {
		return nil
	}

	raw, err := t.codec.MarshalData(data)
	if err != nil {
		return err
	}

	payload := &packet.EventPayload{
		Header: packet.NewHeader(t.nodeID),
		Event:  event,
		Data:   raw,
		Groups: groups,
	}
	return t.publish(ctx, packet.New(packet.CommandEvent, "", payload))
}

// DiscoverNodes broadcasts a DISCOVER asking every peer to introduce itself.
func (t *Transit) DiscoverNodes(ctx context.Context) error {
	payload := &packet.DiscoverPayload{Header: packet.NewHeader(t.nodeID)}
	return t.publish(ctx, packet.New(packet.CommandDiscover, "", payload))
}

// DiscoverNode sends a targeted DISCOVER to one peer. Used when a packet
// arrives from a node the registry has not seen yet.
func (t *Transit) DiscoverNode(ctx context.Context, nodeID string) error {
	payload := &packet.DiscoverPayload{Header: packet.NewHeader(t.nodeID)}
	return t.publish(ctx, packet.New(packet.CommandDiscover, nodeID, payload))
}

// SendNodeInfo publishes the local node descriptor. The broadcast form
// (empty nodeID) first binds service-specific topics so that peers never
// learn about service topics that are not yet live.
func (t *Transit) SendNodeInfo(ctx context.Context, nodeID string) error {
	if nodeID == "" {
		if err := t.tx.MakeServiceSpecificSubscriptions(ctx); err != nil {
			return errors.WrapTransient(err, "Transit", "SendNodeInfo", "bind service topics")
		}
	}

	info := t.broker.GetLocalNodeInfo()
	if info == nil {
		info = &packet.InfoPayload{}
	}
	info.Header = packet.NewHeader(t.nodeID)

	return t.publish(ctx, packet.New(packet.CommandInfo, nodeID, info))
}

// SendPing publishes a PING stamped with the local clock. Broadcast when
// nodeID is empty.
func (t *Transit) SendPing(ctx context.Context, nodeID string) error {
	payload := &packet.PingPayload{
		Header: packet.NewHeader(t.nodeID),
		Time:   t.nowMillis(),
	}
	return t.publish(ctx, packet.New(packet.CommandPing, nodeID, payload))
}

// sendPong answers a PING, echoing its clock and stamping arrival time.
func (t *Transit) sendPong(ctx context.Context, nodeID string, pingTime int64) error {
	payload := &packet.PongPayload{
		Header:  packet.NewHeader(t.nodeID),
		Time:    pingTime,
		Arrived: t.nowMillis(),
	}
	return t.publish(ctx, packet.New(packet.CommandPong, nodeID, payload))
}

// SendHeartbeat broadcasts a HEARTBEAT carrying the current CPU load.
func (t *Transit) SendHeartbeat(ctx context.Context, cpu float64) error {
	payload := &packet.HeartbeatPayload{
		Header: packet.NewHeader(t.nodeID),
		CPU:    cpu,
	}
	return t.publish(ctx, packet.New(packet.CommandHeartbeat, "", payload))
}

// SendDisconnectPacket broadcasts a graceful departure notice.
func (t *Transit) SendDisconnectPacket(ctx context.Context) error {
	payload := &packet.DisconnectPayload{Header: packet.NewHeader(t.nodeID)}
	return t.publish(ctx, packet.New(packet.CommandDisconnect, "", payload))
}

// publish chains behind the subscription barrier, counts the packet and
// hands it to the transporter.
func (t *Transit) publish(ctx context.Context, p *packet.Packet) error {
	if err := t.ready.Wait(ctx); err != nil {
		return errors.WrapTransient(err, "Transit", "publish", "await subscription barrier")
	}

	t.stats.packetsSent.Add(1)
	if t.metrics != nil {
		t.metrics.RecordPacketSent(string(p.Command))
	}

	return t.tx.Prepublish(ctx, p)
}

// errorToEnvelope converts a handler error into its wire form. RemoteError
// fields pass through verbatim so that errors survive multi-hop forwarding.
func (t *Transit) errorToEnvelope(err error) *packet.ErrorEnvelope {
	var remote *errors.RemoteError
	if stderrors.As(err, &remote) {
		return &packet.ErrorEnvelope{
			Name:    remote.Name,
			Message: remote.Message,
			Code:    remote.Code,
			Type:    remote.Type,
			NodeID:  remote.NodeID,
			Data:    remote.Data,
			Stack:   remote.Stack,
		}
	}

	return &packet.ErrorEnvelope{
		Name:    "Error",
		Message: err.Error(),
		Code:    500,
		NodeID:  t.nodeID,
	}
}
