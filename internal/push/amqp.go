package push

import (
	"context"

	"messenger-service/internal/rabbitmq"
)

const routingKeyPrefix = "push."

// AMQPBroadcaster publishes notifications to the push exchange, one routing key per broadcast name.
type AMQPBroadcaster struct {
	publisher rabbitmq.Publisher
}

func NewAMQPBroadcaster(publisher rabbitmq.Publisher) *AMQPBroadcaster {
	return &AMQPBroadcaster{publisher: publisher}
}

func (b *AMQPBroadcaster) Broadcast(ctx context.Context, n Notification) error {
	return b.publisher.Publish(ctx, routingKeyPrefix+n.BroadcastAs, n)
}
