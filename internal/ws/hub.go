package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messenger-service/internal/logger"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
)

const lifecycleRoutingKey = "ws_events.providers"

type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains active websocket connections keyed by provider channel.
type Hub struct {
	channels  map[string]map[*websocket.Conn]*client
	publisher rabbitmq.Publisher
	mu        sync.RWMutex
}

// NewHub creates an empty hub. Connection lifecycle events go to publisher when it is set.
func NewHub(publisher rabbitmq.Publisher) *Hub {
	return &Hub{
		channels:  make(map[string]map[*websocket.Conn]*client),
		publisher: publisher,
	}
}

// AddClient registers a connection on the owner's channel.
func (h *Hub) AddClient(conn *websocket.Conn, info ConnInfo) {
	channel := Channel(info.Owner)
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*websocket.Conn]*client)
	}
	h.channels[channel][conn] = &client{conn: conn, info: info}
}

// RemoveClient drops a connection from the owner's channel.
func (h *Hub) RemoveClient(owner models.ProviderRef, conn *websocket.Conn) {
	channel := Channel(owner)
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.channels[channel]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Connected reports how many connections the provider holds.
func (h *Hub) Connected(owner models.ProviderRef) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[Channel(owner)])
}

func (h *Hub) clients(owner models.ProviderRef) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.channels[Channel(owner)]
	out := make([]*client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// BroadcastTo sends event to every connection of each recipient. Duplicate recipients get it once.
func (h *Hub) BroadcastTo(ctx context.Context, recipients []models.ProviderRef, event models.ThreadEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.FromContext(ctx).Error("encode thread event", zap.String("event", event.Event), zap.Error(err))
		return
	}

	seen := make(map[models.ProviderRef]struct{}, len(recipients))
	for _, owner := range recipients {
		if _, dup := seen[owner]; dup {
			continue
		}
		seen[owner] = struct{}{}

		for _, c := range h.clients(owner) {
			if err := c.write(payload); err != nil {
				logger.FromContext(ctx).Warn("websocket write error", zap.String("conn_id", c.info.ConnID), zap.Error(err))
				c.conn.Close()
				h.RemoveClient(owner, c.conn)
				h.publishLifecycle(ctx, "ws_error", c.info, err.Error())
				continue
			}
			observability.IncWSEvent(event.Event)
		}
	}
}

func (h *Hub) publishLifecycle(ctx context.Context, event string, info ConnInfo, reason string) {
	observability.IncWSEvent(event)
	if h.publisher == nil {
		return
	}

	ctx = rabbitmq.WithHeaders(ctx, observability.CorrelationHeaders(ctx, info.Client.RequestID, info.TraceID))
	_ = h.publisher.Publish(ctx, lifecycleRoutingKey, observability.NewEnvelope("ws_events", event, info.lifecycle(reason)))
}
