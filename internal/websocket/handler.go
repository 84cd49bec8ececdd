package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"forum-chat/internal/events"
	"forum-chat/internal/presence"
	"forum-chat/internal/redis"
	"forum-chat/internal/services"
	"forum-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const readDeadline = 60 * time.Second

type Handler struct {
	auth     *services.AuthService
	delivery *services.DeliveryService
	tracker  *presence.Tracker
	hub      *Hub
	limiter  *redis.RateLimiter
}

func NewHandler(auth *services.AuthService, delivery *services.DeliveryService, tracker *presence.Tracker, hub *Hub, limiter *redis.RateLimiter) *Handler {
	return &Handler{auth: auth, delivery: delivery, tracker: tracker, hub: hub, limiter: limiter}
}

// Connect upgrades the request, registers the connection with the hub and the
// presence tracker, and runs the inbound frame loop until the socket closes.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	claims, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if h.limiter != nil {
		result, err := h.limiter.AllowWebSocket(c.Request.Context(), userID.String())
		if err == nil && !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("connection rate limit exceeded", "RATE_LIMITED"))
			return
		}
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	h.hub.Subscribe(client, events.UserChannel(userID))
	h.hub.Subscribe(client, events.ChannelPresence)
	go client.WriteLoop(ctx)

	// Connect may terminate a previous session for the same user; the hub
	// cleans that one up when its read loop unwinds.
	h.tracker.Connect(ctx, userID, client)

	h.readLoop(ctx, client)

	h.tracker.Disconnect(context.Background(), client.ID())
	h.hub.Unregister(client)
}

func (h *Handler) readLoop(ctx context.Context, client *Client) {
	conn := client.Conn
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		h.handleFrame(ctx, client, frame)
	}
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, frame Frame) {
	switch frame.Type {
	case FrameHeartbeat:
		h.tracker.Heartbeat(client.UserID)

	case FrameJoin:
		conversationID, err := uuid.Parse(frame.ConversationID)
		if err != nil {
			return
		}
		// Only participants may listen on a conversation's room.
		if err := h.delivery.CanAccessConversation(ctx, conversationID, client.UserID); err != nil {
			return
		}
		h.hub.Subscribe(client, events.ConversationChannel(conversationID))

	case FrameLeave:
		conversationID, err := uuid.Parse(frame.ConversationID)
		if err != nil {
			return
		}
		h.hub.Unsubscribe(client, events.ConversationChannel(conversationID))

	case FrameTypingStart:
		conversationID, err := uuid.Parse(frame.ConversationID)
		if err != nil {
			return
		}
		if err := h.delivery.CanAccessConversation(ctx, conversationID, client.UserID); err != nil {
			return
		}
		h.tracker.StartTyping(client.UserID, conversationID)

	case FrameTypingStop:
		conversationID, err := uuid.Parse(frame.ConversationID)
		if err != nil {
			return
		}
		h.tracker.StopTyping(client.UserID, conversationID)
	}
}
