// Package events broadcasts order lifecycle changes so kitchen displays
// and dashboards can react without polling.
package events

import (
	"context"
	"time"

	"pos/internal/models"
)

// Event is the wire payload published on every order change.
type Event struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	Code        string    `json:"code"`
	TableNumber int       `json:"table_number"`
	Status      string    `json:"status"`
	Total       float64   `json:"total"`
	OccurredAt  time.Time `json:"occurred_at"`
}

const (
	TypeOrderCreated  = "order.created"
	TypeOrderUpdated  = "order.updated"
	TypeStatusChanged = "order.status_changed"
)

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

func NewEvent(eventType string, order models.Order) Event {
	return Event{
		Type:        eventType,
		OrderID:     order.OrderID,
		Code:        order.Code,
		TableNumber: order.TableNumber,
		Status:      order.Status,
		Total:       order.Total,
		OccurredAt:  time.Now().UTC(),
	}
}

// Nop is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}
