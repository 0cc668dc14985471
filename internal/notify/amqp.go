package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"chat-client/internal/observability"
)

// Publisher publishes JSON events to a topic exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NewPublisher builds a RabbitMQ publisher, or a noop publisher when AMQP
// is disabled or unreachable.
func NewPublisher(amqpURL, exchange string, logger *slog.Logger) Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if amqpURL == "" {
		logger.Info("amqp notifications disabled, using noop", "reason", "empty amqp url")
		return noopPublisher{reason: "empty amqp url", logger: logger}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		logger.Warn("amqp notifications disabled, using noop", "error", err)
		return noopPublisher{reason: err.Error(), logger: logger}
	}

	ch, err := conn.Channel()
	if err != nil {
		logger.Warn("amqp notifications disabled, using noop", "error", err)
		_ = conn.Close()
		return noopPublisher{reason: err.Error(), logger: logger}
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		logger.Warn("amqp notifications disabled, using noop", "error", err)
		_ = ch.Close()
		_ = conn.Close()
		return noopPublisher{reason: err.Error(), logger: logger}
	}

	logger.Info("amqp connected", "exchange", exchange)
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type noopPublisher struct {
	reason string
	logger *slog.Logger
}

func (n noopPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	n.logger.Debug("amqp noop publish", "routing_key", routingKey)
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// PublisherMode reports the publisher mode for logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

// PublisherNoopReason reports why a noop publisher was chosen.
func PublisherNoopReason(p Publisher) string {
	if publisher, ok := p.(noopPublisher); ok {
		return publisher.reason
	}
	return ""
}

// Envelope is the broker representation of a notification.
type Envelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	UserID        string       `json:"user_id,omitempty"`
	Payload       Notification `json:"payload"`
}

// AMQP forwards notifications to a broker from a background worker so
// that Notify never waits on the network. Notifications that arrive while
// the queue is full, or after Close, are dropped and counted.
type AMQP struct {
	publisher Publisher
	service   string
	userID    func() string
	logger    *slog.Logger
	timeout   time.Duration
	queue     chan Notification
	done      chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewAMQP starts the forwarding worker. userID may be nil.
func NewAMQP(publisher Publisher, service string, userID func() string, logger *slog.Logger) *AMQP {
	if logger == nil {
		logger = slog.Default()
	}
	a := &AMQP{
		publisher: publisher,
		service:   service,
		userID:    userID,
		logger:    logger,
		timeout:   5 * time.Second,
		queue:     make(chan Notification, 128),
		done:      make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AMQP) Notify(_ context.Context, n Notification) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		observability.IncAMQPPublishError()
		a.logger.Debug("amqp notification after close, dropping", "kind", n.Kind)
		return
	}
	select {
	case a.queue <- n:
	default:
		observability.IncAMQPPublishError()
		a.logger.Warn("amqp notification queue full, dropping", "kind", n.Kind)
	}
}

// Close drains the queue, stops the worker and closes the publisher.
// Later calls are no-ops.
func (a *AMQP) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
	return a.publisher.Close()
}

func (a *AMQP) run() {
	defer close(a.done)
	for n := range a.queue {
		envelope := Envelope{
			SchemaVersion: 1,
			EventType:     "notification",
			OccurredAt:    n.At.UTC().Format(time.RFC3339Nano),
			Service:       a.service,
			Payload:       n,
		}
		if a.userID != nil {
			envelope.UserID = a.userID()
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.publisher.Publish(ctx, "notifications."+string(n.Kind), envelope)
		cancel()
		if err != nil {
			observability.IncAMQPPublishError()
			a.logger.Warn("amqp notification publish failed", "kind", n.Kind, "error", err)
		}
	}
}
