package transporter

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/disarticulate/moleculer/errors"
	"github.com/disarticulate/moleculer/logging"
	"github.com/disarticulate/moleculer/packet"
)

// NATSTransporter is the production Transporter over a core NATS connection.
// Subjects are prefixed command topics; targeted topics append the nodeID.
type NATSTransporter struct {
	url    string
	prefix string
	codec  *packet.Codec
	logger logging.Logger

	nodeID    string
	handler   MessageHandler
	onConnect ConnectHandler

	// Connection options
	clientName   string
	username     string
	password     string
	token        string
	tlsCertFile  string
	tlsKeyFile   string
	tlsCAFile    string
	tlsEnabled   bool
	timeout      time.Duration
	drainTimeout time.Duration

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewNATS creates a NATS transporter for the given server URL.
func NewNATS(url string, codec *packet.Codec, opts ...NATSOption) (*NATSTransporter, error) {
	t := &NATSTransporter{
		url:          url,
		prefix:       DefaultPrefix,
		codec:        codec,
		logger:       logging.Default("NATS"),
		timeout:      5 * time.Second,
		drainTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, errors.WrapInvalid(err, "NATSTransporter", "NewNATS", "apply option")
		}
	}

	return t, nil
}

// Init binds the node identity and inbound callbacks.
func (t *NATSTransporter) Init(nodeID string, handler MessageHandler, onConnect ConnectHandler) {
	t.nodeID = nodeID
	t.handler = handler
	t.onConnect = onConnect
}

// Connect establishes the NATS connection. The bound ConnectHandler fires
// with reconnected=false before Connect returns; NATS-level reconnects
// fire it again with reconnected=true.
func (t *NATSTransporter) Connect(ctx context.Context) error {
	t.logger.Printf("Connecting to NATS at %s", t.url)

	opts := t.buildConnectionOptions()

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(t.url, opts...)
		if err != nil {
			connectDone <- err
			return
		}

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			return errors.WrapTransient(err, "NATSTransporter", "Connect", "establish connection")
		}
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "NATSTransporter", "Connect", "connection cancelled")
	}

	t.logger.Printf("Connected to NATS at %s", t.url)

	if t.onConnect != nil {
		t.onConnect(false)
	}
	return nil
}

// buildConnectionOptions builds NATS connection options from transporter configuration
func (t *NATSTransporter) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.Timeout(t.timeout),
		nats.DrainTimeout(t.drainTimeout),
		nats.DisconnectErrHandler(t.handleDisconnect),
		nats.ReconnectHandler(t.handleReconnect),
		nats.ErrorHandler(t.handleError),
	}

	if t.username != "" && t.password != "" {
		opts = append(opts, nats.UserInfo(t.username, t.password))
	}
	if t.token != "" {
		opts = append(opts, nats.Token(t.token))
	}

	if t.tlsEnabled {
		if t.tlsCertFile != "" && t.tlsKeyFile != "" {
			opts = append(opts, nats.ClientCert(t.tlsCertFile, t.tlsKeyFile))
		}
		if t.tlsCAFile != "" {
			opts = append(opts, nats.RootCAs(t.tlsCAFile))
		}
	}

	if t.clientName != "" {
		opts = append(opts, nats.Name(t.clientName))
	}

	return opts
}

// Disconnect unsubscribes every subscription, drains the connection within
// the drain timeout (or until ctx is done) and closes it.
func (t *NATSTransporter) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	subs := t.subs
	t.conn = nil
	t.subs = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, errors.Wrap(err, "NATSTransporter", "Disconnect", "unsubscribe"))
			t.logger.Errorf("Failed to unsubscribe: %v", err)
		}
	}

	drainTimeout := t.drainTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
			drainTimeout = remaining
		}
	}

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- conn.Drain()
	}()

	select {
	case err := <-drainDone:
		if err != nil {
			errs = append(errs, errors.Wrap(err, "NATSTransporter", "Disconnect", "drain connection"))
			t.logger.Errorf("Drain error: %v", err)
		}
	case <-time.After(drainTimeout):
		t.logger.Errorf("Drain timeout after %v, force closing", drainTimeout)
	case <-ctx.Done():
		t.logger.Errorf("Context cancelled during drain, force closing")
	}

	conn.Close()

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Connected reports whether the NATS link is up.
func (t *NATSTransporter) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn != nil && t.conn.IsConnected()
}

// Subscribe binds a command topic, scoped to nodeID when non-empty.
func (t *NATSTransporter) Subscribe(ctx context.Context, command packet.Command, nodeID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil || !t.conn.IsConnected() {
		return errors.ErrNotConnected
	}

	subject := TopicName(t.prefix, command, nodeID)
	sub, err := t.conn.Subscribe(subject, func(msg *nats.Msg) {
		t.handler(command, msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(err, "NATSTransporter", "Subscribe", subject)
	}

	t.subs = append(t.subs, sub)
	t.logger.Debugf("Subscribed to %s", subject)
	return nil
}

// Prepublish serializes a packet and publishes it on its command topic.
func (t *NATSTransporter) Prepublish(_ context.Context, p *packet.Packet) error {
	data, err := t.codec.Serialize(p)
	if err != nil {
		return err
	}

	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.ErrNotConnected
	}

	subject := TopicName(t.prefix, p.Command, p.Target)
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "NATSTransporter", "Prepublish", subject)
	}
	return nil
}

// MakeServiceSpecificSubscriptions binds per-service topics before INFO is
// broadcast. This transporter binds only the fixed topic set through
// Subscribe and has no per-service topics, so the call binds nothing.
func (t *NATSTransporter) MakeServiceSpecificSubscriptions(_ context.Context) error {
	return nil
}

// Event handlers for the NATS connection
func (t *NATSTransporter) handleDisconnect(_ *nats.Conn, err error) {
	if err != nil {
		t.logger.Errorf("NATS disconnected: %v", err)
	}
}

func (t *NATSTransporter) handleReconnect(_ *nats.Conn) {
	t.logger.Printf("NATS reconnected")
	if t.onConnect != nil {
		go t.onConnect(true)
	}
}

func (t *NATSTransporter) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	t.logger.Errorf("NATS error: %v", err)
}
