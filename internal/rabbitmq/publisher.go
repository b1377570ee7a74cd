package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"collab-service/internal/observability"
	"collab-service/internal/telemetry"
)

// ErrClosed is returned once the broker closed the channel. The service keeps running and
// events published afterwards are dropped.
var ErrClosed = errors.New("rabbitmq: channel closed")

// Publisher publishes notification, websocket and audit events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Status describes which publisher is in use.
type Status struct {
	Mode   string // amqp or noop
	Reason string // why the noop publisher was chosen
}

// NewPublisher connects to RabbitMQ and declares a durable topic exchange. Without a URL,
// or when the broker is unreachable, it returns a publisher that drops events.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		return disabled("empty amqp url")
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return disabled(err.Error())
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return disabled(err.Error())
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return disabled(err.Error())
	}

	p := &amqpPublisher{conn: conn, ch: ch, exchange: exchange}
	go p.watch(ch.NotifyClose(make(chan *amqp.Error, 1)))
	slog.Info("rabbitmq connected", "exchange", exchange)
	return p
}

func disabled(reason string) noopPublisher {
	slog.Warn("rabbitmq disabled, events are dropped", "reason", reason)
	return noopPublisher{reason: reason}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string

	mu     sync.Mutex // one publisher per channel at a time
	closed bool
}

func (p *amqpPublisher) watch(closes <-chan *amqp.Error) {
	err, ok := <-closes
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	if ok && err != nil {
		slog.Error("rabbitmq channel closed", "code", err.Code, "reason", err.Reason)
	}
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := amqp.Table{}
	for key, value := range observability.HeadersFromContext(ctx) {
		headers[key] = value
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         body,
	}

	p.mu.Lock()
	if p.closed {
		err = ErrClosed
	} else {
		err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	}
	p.mu.Unlock()

	if err != nil {
		observability.IncAMQPPublishError()
		slog.Error("rabbitmq publish failed", "routing_key", routingKey, "err", err)
	}
	return err
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}

type noopPublisher struct {
	reason string
}

func (noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	attrs := []any{"routing_key", routingKey}
	switch envelope := event.(type) {
	case telemetry.AuditEnvelope:
		attrs = append(attrs, "event_type", envelope.EventType, "action", envelope.Payload.Action)
	case observability.EventEnvelope:
		attrs = append(attrs, "event_type", envelope.EventType, "event_name", envelope.EventName)
	}
	slog.Debug("rabbitmq noop publish", attrs...)
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// Describe reports the publisher mode for startup logging.
func Describe(p Publisher) Status {
	switch pub := p.(type) {
	case *amqpPublisher:
		return Status{Mode: "amqp"}
	case noopPublisher:
		return Status{Mode: "noop", Reason: pub.reason}
	}
	return Status{Mode: "unknown"}
}
