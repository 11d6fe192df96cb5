package packet

import (
	"encoding/json"
	"fmt"

	"github.com/disarticulate/moleculer/errors"
	"github.com/disarticulate/moleculer/serializer"
)

// Codec owns the command-to-shape mapping. Byte-level encoding is delegated
// to the injected Serializer; the codec only decides which struct a command
// deserializes into and verifies the protocol version tag.
type Codec struct {
	ser serializer.Serializer
}

// NewCodec creates a codec over the given serializer.
func NewCodec(ser serializer.Serializer) *Codec {
	return &Codec{ser: ser}
}

// Serialize converts a packet's payload into wire bytes.
func (c *Codec) Serialize(p *Packet) ([]byte, error) {
	if p == nil || p.Payload == nil {
		return nil, errors.ErrMissingPayload
	}
	data, err := c.ser.Marshal(p.Payload)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Codec", "Serialize", string(p.Command))
	}
	return data, nil
}

// Deserialize converts wire bytes into the payload struct fixed for the
// command. Empty input yields ErrMissingPacket.
func (c *Codec) Deserialize(command Command, data []byte) (Payload, error) {
	if len(data) == 0 {
		return nil, errors.ErrMissingPacket
	}

	payload := newPayload(command)
	if payload == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown command %q", command),
			"Codec", "Deserialize", "resolve payload shape")
	}

	if err := c.ser.Unmarshal(data, payload); err != nil {
		return nil, errors.WrapInvalid(err, "Codec", "Deserialize", string(command))
	}
	return payload, nil
}

// MarshalData serializes an arbitrary value into the raw form embedded in
// payload data fields. Raw bytes pass through untouched.
func (c *Codec) MarshalData(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.([]byte); ok {
		return raw, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := c.ser.Marshal(v)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Codec", "MarshalData", "encode data field")
	}
	return data, nil
}

// CheckVersion verifies that a decoded payload carries the local protocol
// version. A mismatch names the observed and expected versions and the sender.
func (c *Codec) CheckVersion(payload Payload) error {
	if payload.Version() != ProtocolVersion {
		return &errors.ProtocolVersionMismatchError{
			Sender:   payload.SenderID(),
			Expected: ProtocolVersion,
			Actual:   payload.Version(),
		}
	}
	return nil
}

// newPayload returns a zero payload struct of the shape fixed for command,
// or nil for a command outside the closed set.
func newPayload(command Command) Payload {
	switch command {
	case CommandEvent:
		return &EventPayload{}
	case CommandRequest:
		return &RequestPayload{}
	case CommandResponse:
		return &ResponsePayload{}
	case CommandDiscover:
		return &DiscoverPayload{}
	case CommandInfo:
		return &InfoPayload{}
	case CommandDisconnect:
		return &DisconnectPayload{}
	case CommandHeartbeat:
		return &HeartbeatPayload{}
	case CommandPing:
		return &PingPayload{}
	case CommandPong:
		return &PongPayload{}
	default:
		return nil
	}
}
