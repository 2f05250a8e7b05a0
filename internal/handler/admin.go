package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"rental_marketplace/internal/domain"
	"rental_marketplace/internal/middleware"
	"rental_marketplace/internal/service"
	apperrors "rental_marketplace/pkg/errors"
	"rental_marketplace/pkg/logger"
)

// AdminHandler serves the verification dashboard. Routes are mounted behind
// RequireAdmin; the services check the role again.
type AdminHandler struct {
	propertyService service.PropertyService
	userService     service.UserService
	log             logger.Logger
}

func NewAdminHandler(propertyService service.PropertyService, userService service.UserService, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		propertyService: propertyService,
		userService:     userService,
		log:             log,
	}
}

func (h *AdminHandler) ListProperties(c *gin.Context) {
	var status *domain.PropertyStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.PropertyStatus(raw)
		if !s.Valid() {
			respondError(c, apperrors.Validation("unknown status %q", raw))
			return
		}
		status = &s
	}

	properties, err := h.propertyService.ListForAdmin(c.Request.Context(), middleware.PrincipalFrom(c), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, properties)
}

func (h *AdminHandler) Queue(c *gin.Context) {
	summary, err := h.propertyService.QueueSummary(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type AssignVerifierRequest struct {
	VerifierName  string `json:"verifierName"`
	EstimatedDays *int   `json:"estimatedDays,omitempty"`
}

func (h *AdminHandler) AssignVerifier(c *gin.Context) {
	id, ok := parseID(c, "id", "property")
	if !ok {
		return
	}

	var req AssignVerifierRequest
	if !bindJSON(c, &req) {
		return
	}

	property, err := h.propertyService.AssignVerifier(c.Request.Context(), middleware.PrincipalFrom(c), id, req.VerifierName, req.EstimatedDays)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

func (h *AdminHandler) Decide(c *gin.Context) {
	id, ok := parseID(c, "id", "property")
	if !ok {
		return
	}

	var decision domain.Decision
	if !bindJSON(c, &decision) {
		return
	}

	property, err := h.propertyService.Decide(c.Request.Context(), middleware.PrincipalFrom(c), id, decision)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

type ChangeRoleRequest struct {
	Role domain.Role `json:"role"`
}

func (h *AdminHandler) ChangeUserRole(c *gin.Context) {
	id, ok := parseID(c, "id", "user")
	if !ok {
		return
	}

	var req ChangeRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.ChangeUserRole(c.Request.Context(), middleware.PrincipalFrom(c), id, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
