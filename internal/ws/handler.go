package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated requests and subscribes them to the actor's channel.
type Handler struct {
	hub      *Hub
	verifier *middleware.TokenVerifier
}

func NewHandler(hub *Hub, verifier *middleware.TokenVerifier) *Handler {
	return &Handler{hub: hub, verifier: verifier}
}

func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	owner, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		Owner:       owner,
		Client:      observability.ClientFrom(c.Request),
		TraceID:     observability.TraceID(ctx),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(conn, info)
	observability.IncWSActive()
	h.hub.publishLifecycle(ctx, "ws_connect", info, "")

	go h.readLoop(context.WithoutCancel(ctx), conn, info)
}

// readLoop drains the connection until it closes. Clients only listen on this channel.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.RemoveClient(info.Owner, conn)
		observability.DecWSActive()
		h.hub.publishLifecycle(ctx, "ws_disconnect", info, closeReason)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.hub.publishLifecycle(ctx, "ws_error", info, closeReason)
			}
			return
		}
	}
}
