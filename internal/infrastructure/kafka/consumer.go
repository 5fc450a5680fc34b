package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/example/ec-wallet-shop/internal/events"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads events from a topic as part of a consumer group.
type Consumer struct {
	reader messageReader
	logger *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, logger)
}

func newConsumer(r messageReader, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{reader: r, logger: logger}
}

// Subscribe hands every event to handler until ctx is cancelled. Messages are
// committed after handling; undecodable messages and handler failures are
// logged and committed so one bad message cannot stall the partition.
func (c *Consumer) Subscribe(ctx context.Context, handler events.Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.Canceled) {
				return err
			}
			c.logger.Error("error reading message", zap.Error(err))
			continue
		}

		var e events.Event
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			c.logger.Warn("skipping undecodable message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		} else if err := handler(ctx, e); err != nil {
			c.logger.Error("error handling event",
				zap.String("type", e.Type),
				zap.String("event_id", e.ID),
				zap.Error(err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("error committing message", zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

var _ events.Subscriber = (*Consumer)(nil)
