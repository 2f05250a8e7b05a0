package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"rental_marketplace/internal/domain"
	"rental_marketplace/internal/middleware"
	"rental_marketplace/internal/service"
	apperrors "rental_marketplace/pkg/errors"
	"rental_marketplace/pkg/logger"
)

type PropertyHandler struct {
	propertyService service.PropertyService
	log             logger.Logger
}

func NewPropertyHandler(propertyService service.PropertyService, log logger.Logger) *PropertyHandler {
	return &PropertyHandler{
		propertyService: propertyService,
		log:             log,
	}
}

// ListLive serves the public explore page.
func (h *PropertyHandler) ListLive(c *gin.Context) {
	filter, err := liveFilterFromQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	properties, err := h.propertyService.ListLive(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, properties)
}

func liveFilterFromQuery(c *gin.Context) (domain.LiveFilter, error) {
	filter := domain.LiveFilter{
		Search:    c.Query("search"),
		Amenities: splitList(c.Query("amenities")),
	}

	var err error
	if filter.MinRent, err = optionalInt(c, "min_rent"); err != nil {
		return filter, err
	}
	if filter.MaxRent, err = optionalInt(c, "max_rent"); err != nil {
		return filter, err
	}
	if raw := c.Query("property_type"); raw != "" {
		propertyType := domain.PropertyType(raw)
		filter.PropertyType = &propertyType
	}
	return filter, nil
}

func optionalInt(c *gin.Context, key string) (*int, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperrors.Validation("%s must be an integer", key)
	}
	return &v, nil
}

func (h *PropertyHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id", "property")
	if !ok {
		return
	}

	property, err := h.propertyService.GetByID(c.Request.Context(), id, middleware.PrincipalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

func (h *PropertyHandler) ListMine(c *gin.Context) {
	properties, err := h.propertyService.ListMine(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, properties)
}

func (h *PropertyHandler) Create(c *gin.Context) {
	var input domain.PropertyInput
	if !bindJSON(c, &input) {
		return
	}

	property, err := h.propertyService.Create(c.Request.Context(), middleware.PrincipalFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, property)
}

func (h *PropertyHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "property")
	if !ok {
		return
	}

	var patch domain.PropertyPatch
	if !bindJSON(c, &patch) {
		return
	}

	property, err := h.propertyService.Update(c.Request.Context(), middleware.PrincipalFrom(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

func (h *PropertyHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "property")
	if !ok {
		return
	}

	if err := h.propertyService.Delete(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
