package transit

import "sync/atomic"

// Stats counts packets crossing the transit layer. Counters increase
// monotonically: sent on every successful egress path entry, received on
// every inbound packet that survives decoding.
type Stats struct {
	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
}

// PacketsSent returns the number of packets published.
func (s *Stats) PacketsSent() uint64 {
	return s.packetsSent.Load()
}

// PacketsReceived returns the number of packets accepted.
func (s *Stats) PacketsReceived() uint64 {
	return s.packetsReceived.Load()
}
