package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_Levels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZap(zap.New(core), "transit")

	logger.Printf("connected to %s", "nats://localhost:4222")
	logger.Errorf("publish failed: %v", "timeout")
	logger.Debugf("pending size %d", 3)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "connected to nats://localhost:4222", entries[0].Message)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, zap.DebugLevel, entries[2].Level)
	assert.Equal(t, "transit", entries[0].LoggerName)
}

func TestDefaultAndNop_DoNotPanic(t *testing.T) {
	for _, logger := range []Logger{Default("TX"), Nop()} {
		logger.Printf("hello %s", "world")
		logger.Errorf("oops %d", 1)
		logger.Debugf("quiet")
	}
}

func TestNewProduction(t *testing.T) {
	logger := NewProduction("transit")
	require.NotNil(t, logger)
	logger.Debugf("production loggers drop debug output")
}
