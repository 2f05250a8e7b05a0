package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"rental_marketplace/pkg/logger"
)

// HealthCheck probes one backing dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	checks []HealthCheck
	log    logger.Logger
}

func NewHealthHandler(checks []HealthCheck, log logger.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, log: log}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(gin.H, len(h.checks))
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			h.log.Warn("Health check failed", "dependency", check.Name, "error", err)
			deps[check.Name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[check.Name] = "ok"
	}

	body := gin.H{
		"status":       "ok",
		"service":      "rental-marketplace",
		"dependencies": deps,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}
