package events

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestAwaitConfirm(t *testing.T) {
	acks := make(chan amqp.Confirmation, 1)

	acks <- amqp.Confirmation{DeliveryTag: 1, Ack: true}
	if err := awaitConfirm(context.Background(), acks); err != nil {
		t.Fatalf("ack should succeed, got %v", err)
	}

	acks <- amqp.Confirmation{DeliveryTag: 2, Ack: false}
	if err := awaitConfirm(context.Background(), acks); err == nil {
		t.Fatalf("nack should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := awaitConfirm(ctx, acks); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDrainStaleDropsAbandonedConfirmation(t *testing.T) {
	acks := make(chan amqp.Confirmation, 1)

	// A cancelled publish leaves its confirmation behind.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := awaitConfirm(ctx, acks); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	acks <- amqp.Confirmation{DeliveryTag: 1, Ack: false}

	// The next publish must not read the stale nack as its own.
	drainStale(acks)
	acks <- amqp.Confirmation{DeliveryTag: 2, Ack: true}
	if err := awaitConfirm(context.Background(), acks); err != nil {
		t.Fatalf("fresh ack should succeed, got %v", err)
	}
}

func TestDrainStaleEmptyChannel(t *testing.T) {
	acks := make(chan amqp.Confirmation, 1)
	drainStale(acks)
	acks <- amqp.Confirmation{DeliveryTag: 1, Ack: true}
	if err := awaitConfirm(context.Background(), acks); err != nil {
		t.Fatalf("ack should succeed, got %v", err)
	}
}
