package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmamart/internal/domain"
)

func sampleOrder() domain.Order {
	return domain.Order{
		ID:          "o-1",
		OrderNumber: "PM-20261016-ABC123",
		UserID:      "u-1",
		Status:      domain.OrderConfirmed,
		Total:       decimal.RequireFromString("45.50"),
		Items: []domain.OrderItem{
			{ProductID: "A", VendorID: "v-1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
			{ProductID: "B", VendorID: "v-1", Quantity: 1, UnitPrice: decimal.RequireFromString("25.50")},
		},
	}
}

func TestOrderCreatedEnvelope(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.FixedZone("MYT", 8*3600))
	body, err := orderCreatedBody(sampleOrder(), now)
	require.NoError(t, err)

	var env Envelope[OrderCreated]
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, "OrderCreated", env.EventName)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "o-1", env.PartitionKey)
	assert.Equal(t, producer, env.Producer)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.True(t, env.Payload.Total.Equal(decimal.RequireFromString("45.5")))
	require.Len(t, env.Payload.Items, 2)
	assert.Equal(t, 2, env.Payload.Items[0].Quantity)
}

func TestOrderStatusChangedEnvelope(t *testing.T) {
	body, err := orderStatusChangedBody(sampleOrder(), domain.OrderPending, time.Now())
	require.NoError(t, err)

	var env Envelope[OrderStatusChanged]
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, "OrderStatusChanged", env.EventName)
	assert.Equal(t, domain.OrderPending, env.Payload.From)
	assert.Equal(t, domain.OrderConfirmed, env.Payload.To)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.OrderCreated(context.Background(), sampleOrder()))
	assert.NoError(t, p.OrderStatusChanged(context.Background(), sampleOrder(), domain.OrderPending))
}
