package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"messenger-service/internal/logger"
)

// Handler processes one delivery. A returned error nacks the delivery without requeue.
type Handler func(ctx context.Context, routingKey string, body []byte) error

// Consumer reads jobs bound to a durable queue on the service exchange.
type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewConsumer(amqpURL, exchange, queue string, routingKeys ...string) (*Consumer, error) {
	conn, ch, err := dial(amqpURL, exchange)
	if err != nil {
		return nil, err
	}

	c := &Consumer{conn: conn, ch: ch, queue: queue}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	for _, key := range routingKeys {
		if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return c, nil
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	logger.Log.Info("rabbitmq consumer started", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := handle(ctx, d.RoutingKey, d.Body); err != nil {
				logger.Log.Error("job failed", zap.String("routing_key", d.RoutingKey), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
