// Package config defines the node configuration recognized by the transit
// layer and its transporter: connection settings, the pending-request queue
// cap, reconnect backoff and handshake timing.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/disarticulate/moleculer/errors"
)

// Default timing values
const (
	DefaultReconnectDelay    = 5 * time.Second
	DefaultHandshakeGrace    = 200 * time.Millisecond
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultConnectTimeout    = 5 * time.Second
	DefaultDrainTimeout      = 30 * time.Second
)

// Config represents the complete node configuration
type Config struct {
	NodeID  string        `json:"node_id"`
	NATS    NATSConfig    `json:"nats"`
	Transit TransitConfig `json:"transit"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URL            string        `json:"url,omitempty"`
	Name           string        `json:"name,omitempty"`
	Username       string        `json:"username,omitempty"`
	Password       string        `json:"password,omitempty"`
	Token          string        `json:"token,omitempty"`
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty"`
	DrainTimeout   time.Duration `json:"drain_timeout,omitempty"`
	TLS            NATSTLSConfig `json:"tls,omitempty"`
}

// NATSTLSConfig for secure NATS connections
type NATSTLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	CAFile   string `json:"ca_file,omitempty"`
}

// TransitConfig defines transit behavior settings
type TransitConfig struct {
	// MaxQueueSize caps in-flight outbound requests. Zero means unbounded.
	MaxQueueSize int `json:"max_queue_size,omitempty"`

	// ReconnectDelay is the base wait between transporter connect attempts.
	ReconnectDelay time.Duration `json:"reconnect_delay,omitempty"`

	// ReconnectBackoffFactor multiplies the delay after each failed attempt.
	// 1.0 keeps the classic fixed interval.
	ReconnectBackoffFactor float64 `json:"reconnect_backoff_factor,omitempty"`

	// ReconnectMaxDelay caps the backoff. Ignored when the factor is 1.0.
	ReconnectMaxDelay time.Duration `json:"reconnect_max_delay,omitempty"`

	// HandshakeGrace is the settle window after DISCOVER/INFO before the
	// node declares itself connected.
	HandshakeGrace time.Duration `json:"handshake_grace,omitempty"`

	// HeartbeatInterval is the period of the HEARTBEAT broadcast loop.
	// ApplyDefaults replaces zero with DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration `json:"heartbeat_interval,omitempty"`
}

// ApplyDefaults fills zero-valued timing fields with their defaults
func (c *Config) ApplyDefaults() {
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://localhost:4222"
	}
	if c.NATS.ConnectTimeout == 0 {
		c.NATS.ConnectTimeout = DefaultConnectTimeout
	}
	if c.NATS.DrainTimeout == 0 {
		c.NATS.DrainTimeout = DefaultDrainTimeout
	}
	if c.Transit.ReconnectDelay == 0 {
		c.Transit.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Transit.ReconnectBackoffFactor == 0 {
		c.Transit.ReconnectBackoffFactor = 1.0
	}
	if c.Transit.HandshakeGrace == 0 {
		c.Transit.HandshakeGrace = DefaultHandshakeGrace
	}
	if c.Transit.HeartbeatInterval == 0 {
		c.Transit.HeartbeatInterval = DefaultHeartbeatInterval
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "node_id is required")
	}
	if c.Transit.MaxQueueSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("max_queue_size must not be negative, got %d", c.Transit.MaxQueueSize))
	}
	if c.Transit.ReconnectBackoffFactor < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"reconnect_backoff_factor must not be negative")
	}
	if c.NATS.TLS.Enabled && c.NATS.TLS.CertFile != "" && c.NATS.TLS.KeyFile == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"tls key_file is required when cert_file is set")
	}
	return nil
}

// Load reads a configuration file, applies defaults and validates
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "read config file")
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
