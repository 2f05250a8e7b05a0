package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"rental_marketplace/internal/middleware"
	"rental_marketplace/internal/service"
	"rental_marketplace/pkg/logger"
)

type ChatHandler struct {
	chatService service.ChatService
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		log:         log,
	}
}

// Open returns the caller's chat about a property, starting one if needed.
func (h *ChatHandler) Open(c *gin.Context) {
	propertyID, ok := parseID(c, "id", "property")
	if !ok {
		return
	}

	chat, err := h.chatService.GetOrCreate(c.Request.Context(), middleware.PrincipalFrom(c), propertyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.chatService.ListMine(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

func (h *ChatHandler) Get(c *gin.Context) {
	chatID, ok := parseID(c, "id", "chat")
	if !ok {
		return
	}

	thread, err := h.chatService.GetWithMessages(c.Request.Context(), middleware.PrincipalFrom(c), chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	chatID, ok := parseID(c, "id", "chat")
	if !ok {
		return
	}

	var req SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	message, err := h.chatService.SendMessage(c.Request.Context(), middleware.PrincipalFrom(c), chatID, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}
