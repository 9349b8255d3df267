package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, Load(cfg))

	assert.Equal(t, 100, cfg.InputBatchSize)
	assert.Equal(t, 100, cfg.CancelBatchSize)
	assert.Equal(t, 5*time.Second, cfg.SnapshotInterval())
	assert.Equal(t, 30*time.Second, cfg.GracefulShutdownTimeout())
	assert.Equal(t, 5*time.Second, cfg.Kafka.ReadTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestConfigOverrides(t *testing.T) {
	t.Setenv("INPUT_BATCH_SIZE", "500")
	t.Setenv("CANCEL_BATCH_SIZE", "25")
	t.Setenv("KAFKA_READ_TIMEOUT", "2s")

	cfg := &Config{}
	require.NoError(t, Load(cfg))

	assert.Equal(t, 500, cfg.InputBatchSize)
	assert.Equal(t, 25, cfg.CancelBatchSize)
	assert.Equal(t, 2*time.Second, cfg.Kafka.ReadTimeout)
}
