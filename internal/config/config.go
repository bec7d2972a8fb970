package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port      int
	LogLevel  string
	Env       string
	DB        DBConfig
	Kafka     KafkaConfig
	RabbitMQ  RabbitMQConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Checkout  CheckoutConfig
	Outbox    OutboxConfig
	RateLimit RateLimitConfig
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// KafkaConfig holds the order events topic settings
type KafkaConfig struct {
	Brokers       []string
	OrdersTopic   string
	ConsumerGroup string
}

// RabbitMQConfig holds the notification broker settings. An empty URL disables publishing.
type RabbitMQConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// RedisConfig holds the catalog cache settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

// CheckoutConfig holds the fee policy and order number settings
type CheckoutConfig struct {
	DeliveryFee            decimal.Decimal
	FreeDeliveryThreshold  decimal.Decimal
	ExpressFeeRate         decimal.Decimal
	StandardTurnaround     time.Duration
	ExpressTurnaround      time.Duration
	OrderNumberMaxAttempts int
}

// OutboxConfig drives the relay and the dead letter re-driver
type OutboxConfig struct {
	PollInterval           time.Duration
	BatchSize              int
	MaxRetries             int
	DeadLetterPollInterval time.Duration
	DeadLetterMaxRetries   int
}

type RateLimitConfig struct {
	Burst     float64
	PerSecond float64
}

// getEnv retrieves the value of an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))

	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	v, err := strconv.ParseFloat(getEnv(key, strconv.FormatFloat(defaultValue, 'f', -1, 64)), 64)

	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v, err := time.ParseDuration(getEnv(key, defaultValue.String()))

	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDecimal(key, defaultValue string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(getEnv(key, defaultValue))

	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return v, nil
}

func splitList(value string) []string {
	var out []string

	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load reads the configuration from environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Env:      getEnv("APP_ENV", "development"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "laundry"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			OrdersTopic:   getEnv("KAFKA_ORDERS_TOPIC", "laundry.orders"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "laundry-order-api"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("NOTIFICATION_EXCHANGE", "laundry.notifications"),
			Queue:    getEnv("NOTIFICATION_QUEUE", "laundry.push"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
	}

	var err error

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"PORT", 8080, &cfg.Port},
		{"DB_PORT", 5432, &cfg.DB.Port},
		{"REDIS_DB", 0, &cfg.Redis.DB},
		{"ORDER_NUMBER_MAX_ATTEMPTS", 3, &cfg.Checkout.OrderNumberMaxAttempts},
		{"OUTBOX_BATCH_SIZE", 10, &cfg.Outbox.BatchSize},
		{"OUTBOX_MAX_RETRIES", 3, &cfg.Outbox.MaxRetries},
		{"DEAD_LETTER_MAX_RETRIES", 3, &cfg.Outbox.DeadLetterMaxRetries},
	}
	for _, f := range ints {
		if *f.dst, err = getEnvInt(f.key, f.def); err != nil {
			return nil, err
		}
	}

	if cfg.Checkout.OrderNumberMaxAttempts < 1 {
		return nil, fmt.Errorf("invalid ORDER_NUMBER_MAX_ATTEMPTS: must be at least 1")
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"CATALOG_CACHE_TTL", time.Minute, &cfg.Redis.TTL},
		{"STANDARD_TURNAROUND", 48 * time.Hour, &cfg.Checkout.StandardTurnaround},
		{"EXPRESS_TURNAROUND", 24 * time.Hour, &cfg.Checkout.ExpressTurnaround},
		{"OUTBOX_POLL_INTERVAL", 5 * time.Second, &cfg.Outbox.PollInterval},
		{"DEAD_LETTER_POLL_INTERVAL", time.Minute, &cfg.Outbox.DeadLetterPollInterval},
	}
	for _, f := range durations {
		if *f.dst, err = getEnvDuration(f.key, f.def); err != nil {
			return nil, err
		}
	}

	decimals := []struct {
		key string
		def string
		dst *decimal.Decimal
	}{
		{"DELIVERY_FEE", "100", &cfg.Checkout.DeliveryFee},
		{"FREE_DELIVERY_THRESHOLD", "1000", &cfg.Checkout.FreeDeliveryThreshold},
		{"EXPRESS_FEE_RATE", "0.10", &cfg.Checkout.ExpressFeeRate},
	}
	for _, f := range decimals {
		if *f.dst, err = getEnvDecimal(f.key, f.def); err != nil {
			return nil, err
		}
	}

	if cfg.RateLimit.Burst, err = getEnvFloat("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimit.PerSecond, err = getEnvFloat("RATE_LIMIT_PER_SECOND", 5); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
