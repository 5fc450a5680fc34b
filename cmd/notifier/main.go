package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-wallet-shop/internal/config"
	"github.com/example/ec-wallet-shop/internal/email"
	"github.com/example/ec-wallet-shop/internal/events"
	"github.com/example/ec-wallet-shop/internal/infrastructure/kafka"
	"github.com/example/ec-wallet-shop/internal/infrastructure/rabbitmq"
	"github.com/example/ec-wallet-shop/internal/infrastructure/store"
	"github.com/example/ec-wallet-shop/internal/logger"
	"github.com/example/ec-wallet-shop/internal/notification"
	"go.uber.org/zap"
)

const notifierQueue = "ec_wallet_shop.notifier"

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()
	zl = zl.Named("notifier")

	if code := logger.Exit(zl, "notifier stopped", run(cfg, zl)); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer db.Close()

	subscriber, err := newSubscriber(cfg, zl)
	if err != nil {
		return err
	}
	defer subscriber.Close()

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(emailSvc, store.NewPostgresStore(db, zl), zl)
	zl.Info("notifier started",
		zap.String("broker", cfg.EventBroker),
		zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort))

	subscribeErr := make(chan error, 1)
	go func() {
		subscribeErr <- subscriber.Subscribe(ctx, handler.HandleEvent)
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		zl.Info("shutting down")
		cancel()
		<-subscribeErr
		return nil
	case err := <-subscribeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("subscriber error: %w", err)
		}
		return nil
	}
}

func newSubscriber(cfg *config.Config, zl *zap.Logger) (events.Subscriber, error) {
	switch cfg.EventBroker {
	case config.BrokerKafka:
		return kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, zl), nil
	case config.BrokerRabbitMQ:
		conn, ch, err := rabbitmq.SetupConn(cfg.RabbitMQURL, zl)
		if err != nil {
			return nil, err
		}
		return &rabbitSubscriber{
			Subscriber: rabbitmq.NewSubscriber(ch, notifierQueue,
				[]string{events.OrderPlaced, events.OrderStatusChanged}, zl),
			closeConn: conn.Close,
		}, nil
	default:
		return nil, fmt.Errorf("notifier needs an event broker, EVENT_BROKER is %q", cfg.EventBroker)
	}
}

// rabbitSubscriber also closes the connection owning the channel.
type rabbitSubscriber struct {
	*rabbitmq.Subscriber
	closeConn func() error
}

func (s *rabbitSubscriber) Close() error {
	return errors.Join(s.Subscriber.Close(), s.closeConn())
}
