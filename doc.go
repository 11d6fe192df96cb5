// Package moleculer provides the transit layer of a pub/sub service mesh:
// the component that translates a service broker's local calls, events and
// lifecycle signals into a multi-command wire protocol tying peer nodes
// into one logical mesh.
//
// # Architecture
//
// Remote callers see request/response semantics; under the hood the transit
// layer multiplexes requests by correlation id, tracks pending calls,
// discovers peers, exchanges capability descriptors and measures liveness.
//
//	┌─────────────────────────────────────┐
//	│            Broker                   │  Local services, context
//	│   (external collaborator)           │  factory, event dispatch
//	└─────────────────────────────────────┘
//	           ↕ typed calls
//	┌─────────────────────────────────────┐
//	│            transit                  │  Pending table, dispatcher,
//	│  (outbound API, lifecycle, stats)   │  handshake, liveness
//	└─────────────────────────────────────┘
//	           ↕ packets
//	┌─────────────────────────────────────┐
//	│        packet + serializer          │  Command set, payload shapes,
//	│                                     │  protocol version, codec
//	└─────────────────────────────────────┘
//	           ↕ bytes
//	┌─────────────────────────────────────┐
//	│          transporter                │  NATS in production,
//	│                                     │  in-memory hub in tests
//	└─────────────────────────────────────┘
//
// # Packages
//
//   - transit: the core bridge — outbound API, inbound dispatcher,
//     pending-request table, connection lifecycle, PING/PONG liveness
//   - packet: the closed command set, payload shapes and codec
//   - serializer: bytes ↔ structured payloads
//   - transporter: the pub/sub adapters (NATS, in-memory)
//   - config: node configuration with defaults and validation
//   - errors: classified error handling and the protocol error kinds
//   - metric: Prometheus instrumentation
//   - logging: the shared Logger interface with std and zap backends
//
// # Guarantees
//
// No packet egresses before the node's core topic subscriptions are live;
// a RESPONSE is matched to its REQUEST only via correlation id; a peer
// disconnect sweeps every pending call targeted at it; and nothing a
// malformed peer sends can raise out of the inbound dispatcher.
package moleculer
