package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/internal/repository"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
)

// MessageHandler delivers one outbox message to its destination
type MessageHandler interface {
	HandleMessage(ctx context.Context, message *models.OutboxMessage) error
}

// Store is the outbox table as the processor sees it
type Store interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error)
	MarkAsProcessing(ctx context.Context, id int64) error
	MarkAsCompleted(ctx context.Context, id int64) error
	MarkAsPending(ctx context.Context, id int64, errorMessage string) error
	MarkAsFailed(ctx context.Context, id int64, errorMessage string) error
}

// DeadLetterWriter parks messages that ran out of attempts
type DeadLetterWriter interface {
	Create(ctx context.Context, message *models.DeadLetterMessage) error
}

// Processor relays pending outbox messages to the handler registered for their event type
type Processor struct {
	store           Store
	deadLetters     DeadLetterWriter
	handlers        map[string]MessageHandler
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	now             func() time.Time
	logger          logger.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	running         bool
	mu              sync.Mutex
}

// ProcessorConfig holds the configuration for the Processor
type ProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
	Now             func() time.Time
}

// NewProcessor creates a new Processor. deadLetters may be nil, in which case
// exhausted messages are only marked failed.
func NewProcessor(store Store, deadLetters DeadLetterWriter, config ProcessorConfig, logger logger.Logger) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	if config.PollingInterval <= 0 {
		config.PollingInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.Now == nil {
		config.Now = models.GetCurrentTime
	}

	return &Processor{
		store:           store,
		deadLetters:     deadLetters,
		handlers:        make(map[string]MessageHandler),
		pollingInterval: config.PollingInterval,
		batchSize:       config.BatchSize,
		maxRetries:      config.MaxRetries,
		now:             config.Now,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// RegisterHandler registers a message handler for a specific event type
func (p *Processor) RegisterHandler(eventType string, handler MessageHandler) {
	p.handlers[eventType] = handler
}

// Start starts the outbox processor
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		p.processOutbox()
	}()

	p.logger.Info("Outbox processor started",
		"pollingInterval", p.pollingInterval,
		"batchSize", p.batchSize,
		"maxRetries", p.maxRetries)
}

// Stop stops the outbox processor and waits for the current batch
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.running = false

	p.logger.Info("Outbox processor stopped")
}

func (p *Processor) processOutbox() {
	ticker := time.NewTicker(p.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.processBatch(p.ctx); err != nil {
				p.logger.Error("Failed to process outbox batch", "error", err)
			}
		}
	}
}

func (p *Processor) processBatch(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, p.pollingInterval)
	defer cancel()

	messages, err := p.store.GetPendingMessages(ctx, p.batchSize)

	if err != nil {
		return fmt.Errorf("failed to get pending messages: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	p.logger.Debug("Processing batch of outbox messages", "count", len(messages))

	for _, msg := range messages {
		if err := p.processMessage(ctx, msg); err != nil {
			p.logger.Error("Failed to process message",
				"error", err,
				"messageID", msg.ID,
				"aggregateID", msg.AggregateID,
				"eventType", msg.EventType)
		}
	}

	return nil
}

func (p *Processor) processMessage(ctx context.Context, msg *models.OutboxMessage) error {
	if err := p.store.MarkAsProcessing(ctx, msg.ID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			p.logger.Debug("Message claimed by another processor", "messageID", msg.ID)
			return nil
		}
		return fmt.Errorf("failed to mark message as processing: %w", err)
	}
	msg.ProcessingAttempts++

	handler, exists := p.handlers[msg.EventType]

	if !exists {
		return p.exhaust(ctx, msg, fmt.Sprintf("no handler registered for event type: %s", msg.EventType), "no_handler")
	}

	if err := handler.HandleMessage(ctx, msg); err != nil {
		if msg.ProcessingAttempts >= p.maxRetries {
			return p.exhaust(ctx, msg, err.Error(), "max_retries_exceeded")
		}

		p.logger.Warn("Message processing failed, will retry",
			"error", err,
			"messageID", msg.ID,
			"attempt", msg.ProcessingAttempts)

		if markErr := p.store.MarkAsPending(ctx, msg.ID, err.Error()); markErr != nil {
			return fmt.Errorf("failed to return message to pending: %w", markErr)
		}
		return err
	}

	if err := p.store.MarkAsCompleted(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to mark message as completed: %w", err)
	}

	p.logger.Info("Successfully processed message",
		"messageID", msg.ID,
		"aggregateID", msg.AggregateID,
		"eventType", msg.EventType)

	return nil
}

// exhaust marks the message failed and parks a copy in the dead letter queue
func (p *Processor) exhaust(ctx context.Context, msg *models.OutboxMessage, errorMsg, reason string) error {
	p.logger.Error("Outbox message failed permanently",
		"error", errorMsg,
		"reason", reason,
		"messageID", msg.ID,
		"attempts", msg.ProcessingAttempts)

	if err := p.store.MarkAsFailed(ctx, msg.ID, errorMsg); err != nil {
		p.logger.Error("Failed to mark message as failed", "error", err, "messageID", msg.ID)
	}

	if p.deadLetters != nil {
		if err := p.deadLetters.Create(ctx, models.NewDeadLetterMessage(msg, errorMsg, reason, p.now())); err != nil {
			return fmt.Errorf("failed to park message in dead letter queue: %w", err)
		}
	}

	return fmt.Errorf("message failed after %d attempts: %s", msg.ProcessingAttempts, errorMsg)
}
