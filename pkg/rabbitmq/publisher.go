package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

var ErrClosed = errors.New("rabbitmq publisher is closed")

// Channel is the subset of *amqp.Channel the publisher needs
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Topology names the exchange and queue notifications flow through
type Topology struct {
	Exchange   string
	Queue      string
	BindingKey string
}

// Publisher publishes persistent JSON messages to a topic exchange
type Publisher struct {
	conn     *amqp.Connection
	channel  Channel
	topology Topology
	logger   logger.Logger
	mu       sync.Mutex
	closed   bool
}

// Dial connects to the broker, opens a channel and declares the topology
func Dial(url string, topology Topology, logger logger.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()

	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	p, err := NewPublisher(ch, topology, logger)

	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	p.conn = conn
	return p, nil
}

// NewPublisher declares the topology on an open channel
func NewPublisher(ch Channel, topology Topology, logger logger.Logger) (*Publisher, error) {
	p := &Publisher{channel: ch, topology: topology, logger: logger}

	if err := p.setup(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Publisher) setup() error {
	dlx := p.topology.Exchange + ".dlx"

	if err := p.channel.ExchangeDeclare(p.topology.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", p.topology.Exchange, err)
	}

	if err := p.channel.ExchangeDeclare(dlx, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", dlx, err)
	}

	if p.topology.Queue == "" {
		return nil
	}

	if _, err := p.channel.QueueDeclare(p.topology.Queue+".dead", true, false, false, false, amqp.Table{
		"x-queue-type": "classic",
	}); err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}

	if err := p.channel.QueueBind(p.topology.Queue+".dead", "", dlx, false, nil); err != nil {
		return fmt.Errorf("bind dead letter queue: %w", err)
	}

	if _, err := p.channel.QueueDeclare(p.topology.Queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": dlx,
	}); err != nil {
		return fmt.Errorf("declare queue %s: %w", p.topology.Queue, err)
	}

	key := p.topology.BindingKey
	if key == "" {
		key = "#"
	}

	if err := p.channel.QueueBind(p.topology.Queue, key, p.topology.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", p.topology.Queue, err)
	}

	return nil
}

// Publish sends body to the exchange under routingKey
func (p *Publisher) Publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		MessageId:    messageID,
		Body:         body,
	}

	if err := p.channel.PublishWithContext(ctx, p.topology.Exchange, routingKey, false, false, msg); err != nil {
		p.logger.Error("Failed to publish to RabbitMQ",
			"error", err,
			"exchange", p.topology.Exchange,
			"routingKey", routingKey)
		return fmt.Errorf("failed to publish to RabbitMQ: %w", err)
	}

	p.logger.Debug("Message published to RabbitMQ",
		"exchange", p.topology.Exchange,
		"routingKey", routingKey,
		"messageID", messageID)

	return nil
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.channel.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
