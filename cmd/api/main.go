package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/vaidashi/laundry-order-api/internal/api"
	"github.com/vaidashi/laundry-order-api/internal/cache"
	"github.com/vaidashi/laundry-order-api/internal/config"
	"github.com/vaidashi/laundry-order-api/internal/database"
	"github.com/vaidashi/laundry-order-api/internal/handlers"
	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/internal/notification"
	"github.com/vaidashi/laundry-order-api/internal/outbox"
	"github.com/vaidashi/laundry-order-api/internal/pricing"
	"github.com/vaidashi/laundry-order-api/internal/promo"
	"github.com/vaidashi/laundry-order-api/internal/repository"
	"github.com/vaidashi/laundry-order-api/internal/service"
	"github.com/vaidashi/laundry-order-api/pkg/circuitbreaker"
	"github.com/vaidashi/laundry-order-api/pkg/kafka"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
	"github.com/vaidashi/laundry-order-api/pkg/middleware"
	"github.com/vaidashi/laundry-order-api/pkg/rabbitmq"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

var notificationEvents = []string{
	notification.EventLaundryNewOrder,
	notification.EventCustomerOrderStatus,
	notification.EventLaundryCancellation,
	notification.EventLaundryOrderStatus,
}

func main() {
	cfg, err := config.Load()

	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.NewLogger(cfg.LogLevel)
	defer l.Sync()

	l.Info("Starting laundry order API", "version", version, "env", cfg.Env)

	db, err := database.New(cfg, l)
	if err != nil {
		l.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		l.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	orderRepo := repository.NewOrderRepository(db, l)
	outboxRepo := repository.NewOutboxRepository(db, l)
	deadLetterRepo := repository.NewDeadLetterRepository(db, l)
	promoRepo := repository.NewPromoRepository(db, l)
	txManager := repository.NewTxManager(db, l)

	var (
		catalog      repository.CatalogReader = repository.NewCatalogRepository(db, l)
		laundryCache service.LaundryInvalidator
	)

	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, "laundry-order-api")
		defer redisCache.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			l.Warn("Redis unreachable, catalog reads fall through to Postgres", "error", err)
		}
		cancel()

		cached := cache.NewCachedCatalog(catalog, redisCache, cfg.Redis.TTL, l)
		catalog, laundryCache = cached, cached
	}

	validator, err := promo.NewValidator(promo.ValidatorDeps{
		Promos:  promoRepo,
		History: orderRepo,
	})
	if err != nil {
		l.Error("Failed to create promo validator", "error", err)
		os.Exit(1)
	}

	orderService, err := service.NewOrderService(service.OrderServiceDeps{
		UnitOfWork:   txManager,
		Orders:       orderRepo,
		Catalog:      catalog,
		Promos:       validator,
		Notifier:     notification.NewOutboxDispatcher(outboxRepo, models.GetCurrentTime),
		LaundryCache: laundryCache,
		Policy: pricing.Policy{
			DeliveryFee:           cfg.Checkout.DeliveryFee,
			FreeDeliveryThreshold: cfg.Checkout.FreeDeliveryThreshold,
			ExpressFeeRate:        cfg.Checkout.ExpressFeeRate,
			StandardTurnaround:    cfg.Checkout.StandardTurnaround,
			ExpressTurnaround:     cfg.Checkout.ExpressTurnaround,
		},
		OrderNumberMaxAttempts: cfg.Checkout.OrderNumberMaxAttempts,
		Logger:                 l,
	})
	if err != nil {
		l.Error("Failed to create order service", "error", err)
		os.Exit(1)
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, l)
	if err != nil {
		l.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	orderEvents := outbox.NewKafkaHandler(producer, cfg.Kafka.OrdersTopic, l)

	notifications, breakers, closeNotifications := notificationHandler(cfg, l)
	defer closeNotifications()

	processor := outbox.NewProcessor(outboxRepo, deadLetterRepo, outbox.ProcessorConfig{
		PollingInterval: cfg.Outbox.PollInterval,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxRetries:      cfg.Outbox.MaxRetries,
	}, l)

	dlqProcessor := outbox.NewDeadLetterProcessor(deadLetterRepo, outbox.DeadLetterProcessorConfig{
		PollingInterval: cfg.Outbox.DeadLetterPollInterval,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxRetries:      cfg.Outbox.DeadLetterMaxRetries,
	}, l)

	for _, eventType := range []string{models.EventOrderCreated, models.EventOrderStatusChanged} {
		processor.RegisterHandler(eventType, orderEvents)
		dlqProcessor.RegisterHandler(eventType, orderEvents)
	}
	for _, eventType := range notificationEvents {
		processor.RegisterHandler(eventType, notifications)
		dlqProcessor.RegisterHandler(eventType, notifications)
	}

	consumer, err := kafka.NewConsumer(&kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topics:        []string{cfg.Kafka.OrdersTopic},
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
	}, l)
	if err != nil {
		l.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	consumer.RegisterHandler(cfg.Kafka.OrdersTopic, handlers.NewOrderEventsHandler(l))

	auth, err := api.NewAuthenticator(cfg.Auth.JWTSecret)
	if err != nil {
		l.Error("Failed to create authenticator", "error", err)
		os.Exit(1)
	}

	server, err := api.NewServer(api.ServerDeps{
		Port:        cfg.Port,
		Version:     version,
		Orders:      orderService,
		DeadLetters: deadLetterRepo,
		Health:      db,
		Auth:        auth,
		RateLimit: middleware.RateLimiterConfig{
			MaxTokens:  cfg.RateLimit.Burst,
			RefillRate: cfg.RateLimit.PerSecond,
		},
		Breakers: breakers,
		Logger:   l,
	})
	if err != nil {
		l.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	processor.Start()
	dlqProcessor.Start()

	if err := consumer.Start(); err != nil {
		l.Error("Failed to start Kafka consumer", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			l.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		l.Error("Server forced to shutdown", "error", err)
	}

	processor.Stop()
	dlqProcessor.Stop()

	if err := consumer.Stop(); err != nil {
		l.Error("Failed to stop Kafka consumer", "error", err)
	}

	l.Info("Server exiting")
}

// notificationHandler publishes notifications to RabbitMQ when a broker is
// configured and logs them otherwise.
func notificationHandler(cfg *config.Config, l logger.Logger) (outbox.MessageHandler, []*circuitbreaker.CircuitBreaker, func()) {
	if cfg.RabbitMQ.URL == "" {
		l.Warn("RABBITMQ_URL not set, notifications will only be logged")
		return outbox.NewLoggingHandler(l), nil, func() {}
	}

	publisher, err := rabbitmq.Dial(cfg.RabbitMQ.URL, rabbitmq.Topology{
		Exchange:   cfg.RabbitMQ.Exchange,
		Queue:      cfg.RabbitMQ.Queue,
		BindingKey: "notification.#",
	}, l)
	if err != nil {
		l.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.CircuitBreakerConfig{
		Name:             "rabbitmq",
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	})

	closeFn := func() {
		if err := publisher.Close(); err != nil {
			l.Error("Failed to close RabbitMQ publisher", "error", err)
		}
	}

	return outbox.NewRabbitMQHandler(publisher, breaker, l), []*circuitbreaker.CircuitBreaker{breaker}, closeFn
}
