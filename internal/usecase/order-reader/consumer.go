package orderreader

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/purplecity/PredictionMarket/pkg/config"
	"github.com/purplecity/PredictionMarket/pkg/errors"
	"github.com/purplecity/PredictionMarket/pkg/logger"
)

// Consumer reads one partition of one input topic. Offsets are managed by
// the engine, not by a consumer group: after a restart the reader is seeked
// just past the cursor pinned in the last snapshot.
type Consumer struct {
	topic       string
	kafkaReader *kafka.Reader
	logger      *logger.Logger
}

// NewConsumer creates a partition reader for the given topic. batchSize caps
// how many entries are fetched ahead of the engine.
func NewConsumer(cfg config.KafkaConfig, topic string, batchSize int, log *logger.Logger) *Consumer {
	readerCfg := kafka.ReaderConfig{
		Brokers:          cfg.Brokers,
		Topic:            topic,
		Partition:        cfg.Partition,
		MinBytes:         cfg.MinBytes,
		MaxBytes:         cfg.MaxBytes,
		MaxWait:          cfg.MaxWait,
		ReadBatchTimeout: cfg.ReadTimeout,
		StartOffset:      kafka.FirstOffset,
	}
	if batchSize > 0 {
		readerCfg.QueueCapacity = batchSize
	}
	kafkaReader := kafka.NewReader(readerCfg)

	return &Consumer{
		topic:       topic,
		kafkaReader: kafkaReader,
		logger:      log.WithFields(logger.Field{Key: "topic", Value: topic}),
	}
}

// SetOffset seeks the reader to an absolute offset.
func (c *Consumer) SetOffset(offset int64) error {
	if err := c.kafkaReader.SetOffset(offset); err != nil {
		c.logger.Error(err, logger.Field{Key: "offset", Value: offset})
		return errors.NewErrorDetails(err.Error(), errors.KafkaSetOffsetError, c.topic)
	}
	return nil
}

// ReadMessage blocks until the next message or context cancellation.
func (c *Consumer) ReadMessage(ctx context.Context) (kafka.Message, error) {
	msg, err := c.kafkaReader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error(err, logger.Field{Key: "operation", Value: "ReadMessage"})
		}
		return kafka.Message{}, errors.NewErrorDetails(err.Error(), errors.KafkaReadError, c.topic)
	}
	return msg, nil
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	if err := c.kafkaReader.Close(); err != nil {
		c.logger.Error(err, logger.Field{Key: "operation", Value: "Close"})
		return errors.NewErrorDetails(err.Error(), errors.KafkaCloseError, c.topic)
	}
	return nil
}
