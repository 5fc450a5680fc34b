package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-wallet-shop/internal/api"
	"github.com/example/ec-wallet-shop/internal/auth"
	"github.com/example/ec-wallet-shop/internal/config"
	"github.com/example/ec-wallet-shop/internal/domain/cart"
	"github.com/example/ec-wallet-shop/internal/domain/category"
	"github.com/example/ec-wallet-shop/internal/domain/inventory"
	"github.com/example/ec-wallet-shop/internal/domain/order"
	"github.com/example/ec-wallet-shop/internal/domain/product"
	"github.com/example/ec-wallet-shop/internal/domain/user"
	"github.com/example/ec-wallet-shop/internal/domain/wallet"
	"github.com/example/ec-wallet-shop/internal/events"
	"github.com/example/ec-wallet-shop/internal/infrastructure/kafka"
	"github.com/example/ec-wallet-shop/internal/infrastructure/rabbitmq"
	"github.com/example/ec-wallet-shop/internal/infrastructure/redis"
	"github.com/example/ec-wallet-shop/internal/infrastructure/store"
	"github.com/example/ec-wallet-shop/internal/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	if code := logger.Exit(zl, "api stopped", run(cfg, zl)); code != 0 {
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
	if err := store.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	zl.Info("connected to PostgreSQL")

	publisher, closePublisher, err := newPublisher(cfg, zl)
	if err != nil {
		return err
	}
	defer closePublisher()

	cartStore, closeCarts, err := newCartStore(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer closeCarts()

	pgStore := store.NewPostgresStore(db, zl)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)

	walletSvc := wallet.NewService(pgStore, publisher, cfg.WalletMaxTopUp, zl)
	productSvc := product.NewService(pgStore, zl)
	orderSvc := order.NewService(pgStore, walletSvc, productSvc, publisher, zl)
	userSvc := user.NewService(pgStore, walletSvc, jwtService, cfg.WalletSignupBonus, zl)
	inventorySvc := inventory.NewService(pgStore, productSvc, cfg.LowStockThreshold, zl)
	categorySvc := category.NewService(pgStore)
	cartSvc := cart.NewService(cartStore, productSvc, orderSvc, zl)

	router := api.NewRouter(api.RouterConfig{
		AuthHandlers:      api.NewAuthHandlers(userSvc, zl),
		WalletHandlers:    api.NewWalletHandlers(walletSvc, zl),
		OrderHandlers:     api.NewOrderHandlers(orderSvc, zl),
		ProductHandlers:   api.NewProductHandlers(productSvc, zl),
		CategoryHandlers:  api.NewCategoryHandlers(categorySvc, zl),
		InventoryHandlers: api.NewInventoryHandlers(inventorySvc, zl),
		CartHandlers:      api.NewCartHandlers(cartSvc, zl),
		JWTService:        jwtService,
		Logger:            zl,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zl.Info("server started", zap.String("addr", server.Addr), zap.String("broker", cfg.EventBroker))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	zl.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func newPublisher(cfg *config.Config, zl *zap.Logger) (events.Publisher, func(), error) {
	switch cfg.EventBroker {
	case config.BrokerKafka:
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, zl)
		zl.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
		return producer, func() { producer.Close() }, nil
	case config.BrokerRabbitMQ:
		conn, ch, err := rabbitmq.SetupConn(cfg.RabbitMQURL, zl)
		if err != nil {
			return nil, nil, err
		}
		zl.Info("publishing events to rabbitmq", zap.String("exchange", rabbitmq.ExchangeName))
		return rabbitmq.NewPublisher(ch), func() {
			ch.Close()
			conn.Close()
		}, nil
	default:
		zl.Info("event publishing disabled")
		return events.NopPublisher{}, func() {}, nil
	}
}

// newCartStore uses Redis when REDIS_ADDR is set and process memory otherwise.
func newCartStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (cart.Store, func(), error) {
	if cfg.RedisAddr == "" {
		zl.Warn("REDIS_ADDR not set, carts are kept in memory")
		return cart.NewMemoryStore(), func() {}, nil
	}
	client, err := redis.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	zl.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	return redis.NewCartStore(client, cfg.CartTTL), func() { client.Close() }, nil
}
