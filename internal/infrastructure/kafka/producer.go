package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/ec-wallet-shop/internal/events"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes events to a single topic keyed by aggregate id, so all
// events of one order land on the same partition in order.
type Producer struct {
	writer messageWriter
	logger *zap.Logger
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return newProducer(writer, logger)
}

func newProducer(w messageWriter, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{writer: w, logger: logger}
}

func (p *Producer) Publish(ctx context.Context, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.AggregateID),
		Value: data,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}); err != nil {
		return err
	}
	p.logger.Debug("event published", zap.String("type", e.Type), zap.String("aggregate_id", e.AggregateID))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

var _ events.Publisher = (*Producer)(nil)
