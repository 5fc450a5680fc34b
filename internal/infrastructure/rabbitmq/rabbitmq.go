package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/ec-wallet-shop/internal/events"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	ExchangeName = "ec_wallet_shop.events"
	ExchangeType = "topic"
)

// SetupConn dials the broker, retrying while it starts up, and declares the
// event exchange.
func SetupConn(url string, logger *zap.Logger) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("failed to connect to rabbitmq", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName, // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return conn, ch, nil
}

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends events to the topic exchange using the event type as the
// routing key, e.g. "order.placed".
type Publisher struct {
	ch publishChannel
}

func NewPublisher(ch publishChannel) *Publisher {
	return &Publisher{ch: ch}
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}

	return p.ch.PublishWithContext(ctx,
		ExchangeName, // exchange
		e.Type,       // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ID,
			Timestamp:    e.Timestamp,
			Type:         e.Type,
			Body:         body,
		},
	)
}

type consumeChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Subscriber consumes events from a durable queue bound to the exchange with
// the given routing key patterns.
type Subscriber struct {
	ch          consumeChannel
	queue       string
	routingKeys []string
	logger      *zap.Logger
}

func NewSubscriber(ch consumeChannel, queue string, routingKeys []string, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(routingKeys) == 0 {
		routingKeys = []string{"#"}
	}
	return &Subscriber{ch: ch, queue: queue, routingKeys: routingKeys, logger: logger}
}

// Subscribe blocks until ctx is done or the delivery channel closes.
func (s *Subscriber) Subscribe(ctx context.Context, handler events.Handler) error {
	q, err := s.ch.QueueDeclare(
		s.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("could not declare queue: %w", err)
	}

	for _, key := range s.routingKeys {
		if err := s.ch.QueueBind(q.Name, key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("could not bind queue: %w", err)
		}
	}

	msgs, err := s.ch.Consume(
		q.Name, // queue
		"",     // consumer tag
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("could not start consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			s.handle(ctx, d, handler)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, d amqp.Delivery, handler events.Handler) {
	var e events.Event
	if err := json.Unmarshal(d.Body, &e); err != nil {
		s.logger.Warn("dropping undecodable message", zap.String("routing_key", d.RoutingKey), zap.Error(err))
		if err := d.Reject(false); err != nil {
			s.logger.Error("reject failed", zap.Error(err))
		}
		return
	}

	if err := handler(ctx, e); err != nil {
		s.logger.Error("error handling event", zap.String("type", e.Type), zap.String("event_id", e.ID), zap.Error(err))
		if err := d.Nack(false, false); err != nil {
			s.logger.Error("nack failed", zap.Error(err))
		}
		return
	}
	if err := d.Ack(false); err != nil {
		s.logger.Error("ack failed", zap.Error(err))
	}
}

func (s *Subscriber) Close() error {
	return s.ch.Close()
}

var (
	_ events.Publisher  = (*Publisher)(nil)
	_ events.Subscriber = (*Subscriber)(nil)
)
