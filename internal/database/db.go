package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/vaidashi/laundry-order-api/internal/config"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

// Database represents a database connection
type Database struct {
	DB     *sqlx.DB
	logger logger.Logger
}

// New creates a new database connection
func New(cfg *config.Config, logger logger.Logger) (*Database, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDBConnString())

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

	return &Database{
		DB:     db,
		logger: logger,
	}, nil
}

// Open connects using a raw DSN, used by integration tests
func Open(dsn string, logger logger.Logger) (*Database, error) {
	db, err := sqlx.Connect("postgres", dsn)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{DB: db, logger: logger}, nil
}

// Ping checks the database connection
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// BeginTx starts a read-committed transaction
func (d *Database) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return d.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// RunMigrations creates the schema when it does not exist yet
func (d *Database) RunMigrations() error {
	_, err := d.DB.Exec(schema)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS laundries (
		id VARCHAR(50) PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		owner_id VARCHAR(50) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING_APPROVAL',
		free_pickup_delivery BOOLEAN NOT NULL DEFAULT FALSE,
		express_multiplier NUMERIC(4, 2) NOT NULL DEFAULT 1.5,
		completed_orders INT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS laundry_pricing (
		laundry_id VARCHAR(50) NOT NULL REFERENCES laundries(id),
		service_category_id VARCHAR(50) NOT NULL,
		clothing_item_id VARCHAR(50) NOT NULL,
		price NUMERIC(12, 2) NOT NULL,
		express_price NUMERIC(12, 2),
		price_unit VARCHAR(20) NOT NULL DEFAULT 'PER_PIECE',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (laundry_id, service_category_id, clothing_item_id)
	);

	CREATE TABLE IF NOT EXISTS promo_codes (
		id VARCHAR(50) PRIMARY KEY,
		code VARCHAR(50) NOT NULL UNIQUE,
		discount_type VARCHAR(20) NOT NULL,
		discount_value NUMERIC(12, 2) NOT NULL,
		max_discount NUMERIC(12, 2),
		min_order_amount NUMERIC(12, 2) NOT NULL DEFAULT 0,
		valid_from TIMESTAMPTZ NOT NULL,
		valid_until TIMESTAMPTZ NOT NULL,
		usage_limit INT,
		used_count INT NOT NULL DEFAULT 0,
		first_order_only BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		applicable_laundry_ids TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(50) PRIMARY KEY,
		order_number VARCHAR(30) NOT NULL UNIQUE,
		customer_id VARCHAR(50) NOT NULL,
		laundry_id VARCHAR(50) NOT NULL REFERENCES laundries(id),
		order_type VARCHAR(20) NOT NULL,
		pickup_type VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		payment_status VARCHAR(20) NOT NULL,
		payment_method VARCHAR(20) NOT NULL,
		subtotal NUMERIC(12, 2) NOT NULL,
		delivery_fee NUMERIC(12, 2) NOT NULL DEFAULT 0,
		express_fee NUMERIC(12, 2) NOT NULL DEFAULT 0,
		discount NUMERIC(12, 2) NOT NULL DEFAULT 0,
		total_amount NUMERIC(12, 2) GENERATED ALWAYS AS
			(GREATEST(subtotal + delivery_fee + express_fee - discount, 0)) STORED,
		promo_code_id VARCHAR(50) REFERENCES promo_codes(id),
		promo_code VARCHAR(50),
		pickup_address TEXT NOT NULL,
		delivery_address TEXT NOT NULL,
		pickup_date TIMESTAMPTZ,
		pickup_time_slot VARCHAR(50) NOT NULL DEFAULT '',
		expected_delivery_at TIMESTAMPTZ NOT NULL,
		special_instructions TEXT NOT NULL DEFAULT '',
		accepted_at TIMESTAMPTZ,
		pickup_scheduled_at TIMESTAMPTZ,
		picked_up_at TIMESTAMPTZ,
		processing_at TIMESTAMPTZ,
		ready_at TIMESTAMPTZ,
		out_for_delivery_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,
		cancellation_reason TEXT,
		cancelled_by VARCHAR(20),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id);
	CREATE INDEX IF NOT EXISTS idx_orders_laundry_id ON orders(laundry_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

	CREATE TABLE IF NOT EXISTS order_items (
		id VARCHAR(50) PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL REFERENCES orders(id),
		service_category_id VARCHAR(50) NOT NULL,
		clothing_item_id VARCHAR(50) NOT NULL,
		price_unit VARCHAR(20) NOT NULL,
		quantity INT NOT NULL,
		weight_kg NUMERIC(8, 2),
		unit_price NUMERIC(12, 2) NOT NULL,
		total_price NUMERIC(12, 2) NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);

	CREATE TABLE IF NOT EXISTS payments (
		id VARCHAR(50) PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL UNIQUE REFERENCES orders(id),
		amount NUMERIC(12, 2) NOT NULL,
		method VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS order_timeline (
		id VARCHAR(50) PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL REFERENCES orders(id),
		event VARCHAR(30) NOT NULL,
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL,
		icon VARCHAR(50) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_order_timeline_order_id ON order_timeline(order_id, created_at);

	CREATE TABLE IF NOT EXISTS order_status_history (
		id VARCHAR(50) PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL REFERENCES orders(id),
		from_status VARCHAR(20),
		to_status VARCHAR(20) NOT NULL,
		changed_by VARCHAR(50) NOT NULL,
		actor_role VARCHAR(20) NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_order_status_history_order_id ON order_status_history(order_id, created_at);

	-- Outbox table for message publishing
	CREATE TABLE IF NOT EXISTS outbox_messages (
		id SERIAL PRIMARY KEY,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(50) NOT NULL,
		event_type VARCHAR(80) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ,
		processing_attempts INT NOT NULL DEFAULT 0,
		last_error TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages(status);
	CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_messages(aggregate_type, aggregate_id);

	CREATE TABLE IF NOT EXISTS dead_letter_messages (
		id SERIAL PRIMARY KEY,
		original_message_id INT NOT NULL,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(50) NOT NULL,
		event_type VARCHAR(80) NOT NULL,
		payload JSONB NOT NULL,
		error_message TEXT NOT NULL,
		failure_reason TEXT NOT NULL,
		retry_count INT NOT NULL DEFAULT 0,
		last_retry_at TIMESTAMPTZ,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		resolved_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_dead_letter_status ON dead_letter_messages(status);
`
