package transit

import (
	"context"
	"time"

	"github.com/disarticulate/moleculer/errors"
	"github.com/disarticulate/moleculer/pkg/retry"
)

// Connect brings the node into the mesh. Failed transporter connects are
// retried at the configured interval until ctx is cancelled or Disconnect
// is called; the call returns only after the post-connect handshake has
// completed and the node is ready.
func (t *Transit) Connect(ctx context.Context) error {
	t.logger.Printf("Connecting to the transporter...")

	cfg := retry.Config{
		MaxAttempts:  0,
		InitialDelay: t.opts.ReconnectDelay,
		MaxDelay:     t.opts.ReconnectMaxDelay,
		Multiplier:   t.opts.ReconnectBackoffFactor,
	}

	return retry.Do(ctx, cfg, func() error {
		if t.isDisconnecting() {
			return retry.NonRetryable(errors.ErrDisconnecting)
		}

		if err := t.tx.Connect(ctx); err != nil {
			t.logger.Errorf("Connection failed: %v", err)
			if !t.isDisconnecting() {
				t.logger.Printf("Reconnecting in %v...", t.opts.ReconnectDelay)
			}
			return err
		}

		// The transporter invokes the handshake before Connect returns; a
		// handshake that did not reach the connected state re-enters the
		// retry loop.
		if !t.Connected() {
			return errors.WrapTransient(errors.ErrNotConnected, "Transit", "Connect", "complete handshake")
		}
		return nil
	})
}

// onTransporterConnect runs the post-connect handshake. It fires on the
// initial connect and again on every transporter-level reconnect; the
// subscription step only runs once because topics stay bound.
func (t *Transit) onTransporterConnect(reconnected bool) {
	ctx := context.Background()

	if !reconnected {
		if err := t.makeSubscriptions(ctx); err != nil {
			t.logger.Errorf("Failed to bind core topics: %v", err)
			return
		}
	} else {
		t.logger.Printf("Transporter reconnected, re-running handshake")
		if t.metrics != nil {
			t.metrics.RecordReconnect()
		}
	}

	if err := t.DiscoverNodes(ctx); err != nil {
		t.logger.Errorf("Failed to broadcast DISCOVER: %v", err)
	}
	if err := t.SendNodeInfo(ctx, ""); err != nil {
		t.logger.Errorf("Failed to broadcast INFO: %v", err)
	}

	// Absorb incoming INFO replies before declaring ready
	time.Sleep(t.opts.HandshakeGrace)

	t.setConnected(true)
	t.startHeartbeat()
	t.broker.BroadcastLocal(EventConnected, &ConnectedNotification{Reconnected: reconnected})
}

// Disconnect leaves the mesh gracefully: announces the departure, stops the
// heartbeat loop and closes the transporter. While the disconnect is in
// progress, connect failures do not schedule reconnect attempts.
func (t *Transit) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	t.connected = false
	t.disconnecting = true
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordConnected(false)
	}

	defer func() {
		t.mu.Lock()
		t.disconnecting = false
		t.mu.Unlock()
	}()

	t.stopHeartbeat()
	t.broker.BroadcastLocal(EventDisconnected, &DisconnectedNotification{Graceful: true})

	if !t.tx.Connected() {
		return nil
	}

	if err := t.SendDisconnectPacket(ctx); err != nil {
		t.logger.Errorf("Failed to broadcast DISCONNECT: %v", err)
	}
	return t.tx.Disconnect(ctx)
}

// startHeartbeat launches the periodic HEARTBEAT broadcast. No-op when the
// interval is zero or the loop is already running.
func (t *Transit) startHeartbeat() {
	if t.opts.HeartbeatInterval <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.heartbeatStop != nil {
		return
	}

	stop := make(chan struct{})
	t.heartbeatStop = stop

	go func() {
		ticker := time.NewTicker(t.opts.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !t.Connected() {
					continue
				}
				if err := t.SendHeartbeat(context.Background(), t.cpuLoad()); err != nil {
					t.logger.Errorf("Failed to broadcast HEARTBEAT: %v", err)
				}
			}
		}
	}()
}

func (t *Transit) stopHeartbeat() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.heartbeatStop != nil {
		close(t.heartbeatStop)
		t.heartbeatStop = nil
	}
}

func (t *Transit) cpuLoad() float64 {
	if t.opts.CPULoad != nil {
		return t.opts.CPULoad()
	}
	return 0
}
