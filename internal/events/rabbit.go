package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
)

// Rabbit publishes to a durable topic exchange.
type Rabbit struct {
	conn     *amqp.Connection
	exchange string
	logger   *zap.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// DialRabbit connects and declares the exchange.
func DialRabbit(url, exchange string, logger *zap.Logger) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Rabbit{
		conn:     conn,
		exchange: exchange,
		logger:   logging.OrNop(logger).Named("events"),
		ch:       ch,
	}, nil
}

func (r *Rabbit) OrderCreated(ctx context.Context, o domain.Order) error {
	body, err := orderCreatedBody(o, time.Now())
	if err != nil {
		return err
	}
	return r.publish(ctx, OrderCreatedKey, body)
}

func (r *Rabbit) OrderStatusChanged(ctx context.Context, o domain.Order, from domain.OrderStatus) error {
	body, err := orderStatusChangedBody(o, from, time.Now())
	if err != nil {
		return err
	}
	return r.publish(ctx, OrderStatusChangedKey, body)
}

func (r *Rabbit) publish(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.ch.PublishWithContext(pubCtx, r.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		r.logger.Error("publish failed", zap.String("routing_key", routingKey), zap.Error(err))
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	r.logger.Debug("event published", zap.String("routing_key", routingKey))
	return nil
}

func (r *Rabbit) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ch.Close(); err != nil {
		r.logger.Warn("close channel", zap.Error(err))
	}
	return r.conn.Close()
}
