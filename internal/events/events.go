// Package events publishes order lifecycle events to a RabbitMQ topic
// exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pharmamart/internal/domain"
)

const (
	OrderCreatedKey       = "order.created.v1"
	OrderStatusChangedKey = "order.status_changed.v1"

	producer = "pharmamart-api"
)

// Envelope wraps every payload with identity and ordering metadata.
type Envelope[T any] struct {
	EventName    string    `json:"eventName"`
	EventVersion int       `json:"eventVersion"`
	EventID      string    `json:"eventId"`
	Producer     string    `json:"producer"`
	PartitionKey string    `json:"partitionKey"`
	OccurredAt   time.Time `json:"occurredAt"`
	Payload      T         `json:"payload"`
}

// OrderItem is the event view of a frozen order line.
type OrderItem struct {
	ProductID string          `json:"productId"`
	VendorID  string          `json:"vendorId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type OrderCreated struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	UserID      string          `json:"userId"`
	Total       decimal.Decimal `json:"total"`
	Items       []OrderItem     `json:"items"`
}

type OrderStatusChanged struct {
	OrderID     string             `json:"orderId"`
	OrderNumber string             `json:"orderNumber"`
	UserID      string             `json:"userId"`
	From        domain.OrderStatus `json:"from"`
	To          domain.OrderStatus `json:"to"`
}

// Publisher emits order events.
type Publisher interface {
	OrderCreated(ctx context.Context, o domain.Order) error
	OrderStatusChanged(ctx context.Context, o domain.Order, from domain.OrderStatus) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) OrderCreated(context.Context, domain.Order) error { return nil }

func (Nop) OrderStatusChanged(context.Context, domain.Order, domain.OrderStatus) error { return nil }

func newEnvelope[T any](name, partitionKey string, payload T, now time.Time) Envelope[T] {
	return Envelope[T]{
		EventName:    name,
		EventVersion: 1,
		EventID:      uuid.NewString(),
		Producer:     producer,
		PartitionKey: partitionKey,
		OccurredAt:   now.UTC(),
		Payload:      payload,
	}
}

func orderCreatedBody(o domain.Order, now time.Time) ([]byte, error) {
	ev := OrderCreated{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Total:       o.Total,
		Items:       make([]OrderItem, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, OrderItem{
			ProductID: it.ProductID,
			VendorID:  it.VendorID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	body, err := json.Marshal(newEnvelope("OrderCreated", o.ID, ev, now))
	if err != nil {
		return nil, fmt.Errorf("marshal OrderCreated: %w", err)
	}
	return body, nil
}

func orderStatusChangedBody(o domain.Order, from domain.OrderStatus, now time.Time) ([]byte, error) {
	ev := OrderStatusChanged{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		From:        from,
		To:          o.Status,
	}
	body, err := json.Marshal(newEnvelope("OrderStatusChanged", o.ID, ev, now))
	if err != nil {
		return nil, fmt.Errorf("marshal OrderStatusChanged: %w", err)
	}
	return body, nil
}
