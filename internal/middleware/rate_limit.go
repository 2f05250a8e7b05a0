package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"rental_marketplace/internal/observability/metrics"
	"rental_marketplace/internal/service"
	apperrors "rental_marketplace/pkg/errors"
	"rental_marketplace/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		log:              log,
	}
}

// Limit allows limit requests per window for each caller within scope. Callers
// are keyed by user id when authenticated and by client IP otherwise. If the
// limiter store is down the request is let through.
func (m *RateLimitMiddleware) Limit(scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.ClientIP()
		if principal := PrincipalFrom(c); principal.IsAuthenticated() {
			subject = principal.UserID.String()
		}
		key := "ratelimit:" + scope + ":" + subject

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))

		remaining, err := m.rateLimitService.Consume(c.Request.Context(), key, limit, window)
		switch {
		case errors.Is(err, apperrors.ErrRateLimited):
			metrics.ObserveRateLimited(scope)
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			abortWithError(c, err)
			return
		case err != nil:
			m.log.Error("Rate limit check failed", "error", err, "scope", scope)
		default:
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}
		c.Next()
	}
}
