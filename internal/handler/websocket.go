package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"rental_marketplace/internal/middleware"
	"rental_marketplace/internal/notify"
	"rental_marketplace/internal/service"
	"rental_marketplace/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams new messages of one chat to a participant. Sending
// still goes through the REST endpoint so it stays rate limited.
type WebSocketHandler struct {
	chatService service.ChatService
	subscriber  notify.Subscriber
	log         logger.Logger
}

func NewWebSocketHandler(chatService service.ChatService, subscriber notify.Subscriber, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		chatService: chatService,
		subscriber:  subscriber,
		log:         log,
	}
}

func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	chatID, ok := parseID(c, "id", "chat")
	if !ok {
		return
	}

	chat, err := h.chatService.Authorize(c.Request.Context(), middleware.PrincipalFrom(c), chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.subscriber == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates are not available", "code": http.StatusServiceUnavailable})
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	events, closeSub, err := h.subscriber.Subscribe(ctx, notify.Chat(chat.ID))
	if err != nil {
		h.log.Error("Failed to subscribe to chat", "chat_id", chat.ID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates are not available", "code": http.StatusServiceUnavailable})
		return
	}
	defer closeSub()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, events)
}

// readPump discards client frames and cancels the stream once the peer goes away.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Chat stream closed unexpectedly", "error", err)
			}
			return
		}
	}
}

func (h *WebSocketHandler) writePump(ctx context.Context, conn *websocket.Conn, events <-chan notify.Envelope) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case envelope, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(envelope); err != nil {
				h.log.Warn("Failed to write chat event", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
