package transporter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disarticulate/moleculer/logging"
	"github.com/disarticulate/moleculer/packet"
	"github.com/disarticulate/moleculer/serializer"
)

func TestNewNATS_Defaults(t *testing.T) {
	codec := packet.NewCodec(serializer.NewJSON())

	tx, err := NewNATS("nats://localhost:4222", codec)
	require.NoError(t, err)

	assert.Equal(t, DefaultPrefix, tx.prefix)
	assert.Equal(t, 5*time.Second, tx.timeout)
	assert.Equal(t, 30*time.Second, tx.drainTimeout)
	assert.False(t, tx.Connected())
}

func TestNewNATS_Options(t *testing.T) {
	codec := packet.NewCodec(serializer.NewJSON())

	tx, err := NewNATS("nats://localhost:4222", codec,
		WithPrefix("MESH"),
		WithName("worker-1"),
		WithCredentials("svc", "secret"),
		WithToken("tok"),
		WithTLS("cert.pem", "key.pem", "ca.pem"),
		WithTimeout(2*time.Second),
		WithDrainTimeout(10*time.Second),
		WithLogger(logging.Nop()),
	)
	require.NoError(t, err)

	assert.Equal(t, "MESH", tx.prefix)
	assert.Equal(t, "worker-1", tx.clientName)
	assert.Equal(t, "svc", tx.username)
	assert.Equal(t, "secret", tx.password)
	assert.Equal(t, "tok", tx.token)
	assert.True(t, tx.tlsEnabled)
	assert.Equal(t, 2*time.Second, tx.timeout)
	assert.Equal(t, 10*time.Second, tx.drainTimeout)

	// Option state must translate into NATS connection options
	opts := tx.buildConnectionOptions()
	assert.NotEmpty(t, opts)
}

func TestNATSTransporter_DisconnectWithoutConnection(t *testing.T) {
	codec := packet.NewCodec(serializer.NewJSON())
	tx, err := NewNATS("nats://localhost:4222", codec)
	require.NoError(t, err)

	// No connection established: Disconnect must be a clean no-op
	assert.NoError(t, tx.Disconnect(context.Background()))
}
