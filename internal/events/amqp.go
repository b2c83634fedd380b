package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const Exchange = "pos.orders"

// AMQPPublisher publishes events to a topic exchange with publisher
// confirms. Publish blocks until the broker acks, so the mutex serializes
// concurrent publishers on the single channel.
type AMQPPublisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	acks <-chan amqp.Confirmation
	mu   sync.Mutex
}

func DialAMQP(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &AMQPPublisher{conn: conn, ch: ch, acks: acks}, nil
}

// Publish routes by event type, e.g. "order.status_changed", and waits for
// the broker's confirm.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	drainStale(p.acks)

	err = p.ch.PublishWithContext(ctx, Exchange, event.Type, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return err
	}

	return awaitConfirm(ctx, p.acks)
}

// drainStale drops a confirmation abandoned by a previous Publish whose
// context was cancelled before the broker answered. Without this the next
// publish would read the stale ack as its own.
func drainStale(acks <-chan amqp.Confirmation) {
	select {
	case <-acks:
	default:
	}
}

func awaitConfirm(ctx context.Context, acks <-chan amqp.Confirmation) error {
	select {
	case conf := <-acks:
		if conf.Ack {
			return nil
		}
		return errors.New("publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AMQPPublisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
