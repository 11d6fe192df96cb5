package transporter

import (
	"time"

	"github.com/disarticulate/moleculer/logging"
)

// NATSOption is a functional option for configuring the NATSTransporter
type NATSOption func(*NATSTransporter) error

// WithLogger sets a custom logger for the transporter
func WithLogger(logger logging.Logger) NATSOption {
	return func(t *NATSTransporter) error {
		if logger == nil {
			logger = logging.Default("NATS")
		}
		t.logger = logger
		return nil
	}
}

// WithPrefix overrides the subject prefix
func WithPrefix(prefix string) NATSOption {
	return func(t *NATSTransporter) error {
		if prefix != "" {
			t.prefix = prefix
		}
		return nil
	}
}

// WithCredentials sets username and password for authentication
func WithCredentials(username, password string) NATSOption {
	return func(t *NATSTransporter) error {
		t.username = username
		t.password = password
		return nil
	}
}

// WithToken sets a token for authentication
func WithToken(token string) NATSOption {
	return func(t *NATSTransporter) error {
		t.token = token
		return nil
	}
}

// WithTLS enables TLS with optional certificate paths
func WithTLS(certFile, keyFile, caFile string) NATSOption {
	return func(t *NATSTransporter) error {
		t.tlsCertFile = certFile
		t.tlsKeyFile = keyFile
		t.tlsCAFile = caFile
		t.tlsEnabled = true
		return nil
	}
}

// WithName sets the client name for identification
func WithName(name string) NATSOption {
	return func(t *NATSTransporter) error {
		t.clientName = name
		return nil
	}
}

// WithTimeout sets the connection timeout
func WithTimeout(d time.Duration) NATSOption {
	return func(t *NATSTransporter) error {
		t.timeout = d
		return nil
	}
}

// WithDrainTimeout sets the timeout for draining on disconnect
func WithDrainTimeout(d time.Duration) NATSOption {
	return func(t *NATSTransporter) error {
		t.drainTimeout = d
		return nil
	}
}
