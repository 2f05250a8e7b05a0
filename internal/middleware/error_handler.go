package middleware

import (
	"github.com/gin-gonic/gin"
	apperrors "rental_marketplace/pkg/errors"
	"rental_marketplace/pkg/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		apiErr := apperrors.ToAPIError(err)
		if apiErr.Code >= 500 {
			log.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		}
		c.JSON(apiErr.Code, apiErr)
	}
}

func abortWithError(c *gin.Context, err error) {
	apiErr := apperrors.ToAPIError(err)
	c.AbortWithStatusJSON(apiErr.Code, apiErr)
}
