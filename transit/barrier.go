package transit

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/disarticulate/moleculer/errors"
	"github.com/disarticulate/moleculer/packet"
)

// readyGate is the subscription barrier: a one-shot readiness condition that
// publishers await. It resolves once, after every core topic subscription
// succeeded on first connect, and stays resolved for the life of the node.
type readyGate struct {
	once sync.Once
	ch   chan struct{}
}

func newReadyGate() *readyGate {
	return &readyGate{ch: make(chan struct{})}
}

// Resolve marks the gate ready. Safe to call more than once.
func (g *readyGate) Resolve() {
	g.once.Do(func() { close(g.ch) })
}

// Resolved reports whether the gate is ready without blocking.
func (g *readyGate) Resolved() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the gate resolves or ctx is done.
func (g *readyGate) Wait(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// topicBinding pairs a command with its node scope; an empty nodeID is the
// broadcast form.
type topicBinding struct {
	command packet.Command
	nodeID  string
}

// subscriptionSet is the fixed topic set declared at startup.
func (t *Transit) subscriptionSet() []topicBinding {
	self := t.nodeID
	return []topicBinding{
		{packet.CommandEvent, self},
		{packet.CommandRequest, self},
		{packet.CommandResponse, self},
		{packet.CommandDiscover, ""},
		{packet.CommandDiscover, self},
		{packet.CommandInfo, ""},
		{packet.CommandInfo, self},
		{packet.CommandDisconnect, ""},
		{packet.CommandHeartbeat, ""},
		{packet.CommandPing, ""},
		{packet.CommandPing, self},
		{packet.CommandPong, self},
	}
}

// makeSubscriptions binds the full topic set in parallel and resolves the
// publish barrier once all succeed. Any failure leaves the barrier pending
// so that queued publishes keep waiting for the retried connect.
func (t *Transit) makeSubscriptions(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, binding := range t.subscriptionSet() {
		g.Go(func() error {
			return t.tx.Subscribe(ctx, binding.command, binding.nodeID)
		})
	}

	if err := g.Wait(); err != nil {
		return errors.WrapTransient(err, "Transit", "makeSubscriptions", "bind core topics")
	}

	t.ready.Resolve()
	return nil
}
