package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"rental_marketplace/internal/notify"
	"rental_marketplace/internal/service"
	apperrors "rental_marketplace/pkg/errors"
	"rental_marketplace/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Property  *PropertyHandler
	Admin     *AdminHandler
	Chat      *ChatHandler
	User      *UserHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, subscriber notify.Subscriber, checks []HealthCheck, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(checks, log),
		Property:  NewPropertyHandler(services.Property, log),
		Admin:     NewAdminHandler(services.Property, services.User, log),
		Chat:      NewChatHandler(services.Chat, log),
		User:      NewUserHandler(services.User, log),
		WebSocket: NewWebSocketHandler(services.Chat, subscriber, log),
	}
}

// respondError writes the public form of err. Storage failures were already
// logged by the service that produced them.
func respondError(c *gin.Context, err error) {
	apiErr := apperrors.ToAPIError(err)
	c.JSON(apiErr.Code, apiErr)
}

func parseID(c *gin.Context, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewAPIError("invalid "+what+" ID", http.StatusBadRequest))
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewAPIError("invalid request body", http.StatusBadRequest))
		return false
	}
	return true
}

// splitList parses a comma separated query value, dropping empty items.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
