package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/purplecity/PredictionMarket/pkg/redis"
)

// MustLoad loads the configuration from environment variables and .env file.
func MustLoad[T any](cfg T) {
	_ = godotenv.Load() // Load environment variables from .env file

	env.Must(cfg, env.Parse(cfg))
}

// Load loads the configuration from environment variables and .env file.
func Load[T any](cfg T) error {
	_ = godotenv.Load() // .env file is optional

	if err := env.Parse(cfg); err != nil {
		return err
	}

	return nil
}

// Config holds the configuration for the matching engine process.
type Config struct {
	SnapshotIntervalSeconds int `env:"SNAPSHOT_INTERVAL_SECONDS" envDefault:"5"`
	// InputBatchSize caps how many input log entries a reader fetches ahead
	// of the engine.
	InputBatchSize int `env:"INPUT_BATCH_SIZE" envDefault:"100"`
	// CancelBatchSize is how many teardown cancellations share one update id.
	CancelBatchSize           int           `env:"CANCEL_BATCH_SIZE" envDefault:"100"`
	CommandChannelCapacity    int           `env:"COMMAND_CHANNEL_CAPACITY" envDefault:"1024"`
	MaxDepthReported          int           `env:"MAX_DEPTH_REPORTED" envDefault:"50"`
	DedupWindowSize           int           `env:"DEDUP_WINDOW_SIZE" envDefault:"10000"`
	SnapshotPath              string        `env:"SNAPSHOT_PATH" envDefault:"./data/orders_snapshot.json"`
	GracefulShutdownTimeoutMs int           `env:"GRACEFUL_SHUTDOWN_TIMEOUT_MS" envDefault:"30000"`
	PublisherWorkers          int           `env:"PUBLISHER_WORKERS" envDefault:"4"`
	ExpiryCheckInterval       time.Duration `env:"EXPIRY_CHECK_INTERVAL" envDefault:"5m"`
	ExpiryDelay               time.Duration `env:"EXPIRY_DELAY" envDefault:"30m"`

	Kafka KafkaConfig  `envPrefix:"KAFKA_"`
	Redis redis.Config `envPrefix:"REDIS_"`
}

// KafkaConfig holds the configuration for the input topic readers.
type KafkaConfig struct {
	Brokers     []string      `env:"BROKER" envDefault:"localhost:9092"`
	OrderTopic  string        `env:"ORDER_TOPIC" envDefault:"order-input"`
	EventTopic  string        `env:"EVENT_TOPIC" envDefault:"event-input"`
	Partition   int           `env:"PARTITION" envDefault:"0"`
	MinBytes    int           `env:"MIN_BYTES" envDefault:"1"`
	MaxBytes    int           `env:"MAX_BYTES" envDefault:"10485760"`
	MaxWait     time.Duration `env:"MAX_WAIT" envDefault:"500ms"`
	ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
}

// SnapshotInterval returns the snapshot cadence as a duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSeconds) * time.Second
}

// GracefulShutdownTimeout returns the shutdown budget as a duration.
func (c *Config) GracefulShutdownTimeout() time.Duration {
	return time.Duration(c.GracefulShutdownTimeoutMs) * time.Millisecond
}
