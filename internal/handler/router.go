package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"rental_marketplace/internal/config"
	"rental_marketplace/internal/middleware"
	"rental_marketplace/pkg/logger"
)

// NewRouter mounts every route of the public API.
func NewRouter(
	handlers *Handlers,
	identity *middleware.IdentityMiddleware,
	rateLimit *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler(log))

	router.GET("/health", handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		public := v1.Group("")
		public.Use(identity.OptionalAuth())
		{
			public.GET("/properties", handlers.Property.ListLive)
			public.GET("/properties/:id", handlers.Property.Get)
		}

		protected := v1.Group("")
		protected.Use(identity.RequireAuth())
		{
			protected.GET("/me", handlers.User.GetMe)
			protected.GET("/me/properties", handlers.Property.ListMine)

			protected.POST("/properties", handlers.Property.Create)
			protected.PATCH("/properties/:id", handlers.Property.Update)
			protected.DELETE("/properties/:id", handlers.Property.Delete)
			protected.POST("/properties/:id/chat", handlers.Chat.Open)

			protected.GET("/chats", handlers.Chat.List)
			protected.GET("/chats/:id", handlers.Chat.Get)
			protected.POST("/chats/:id/messages",
				rateLimit.Limit("messages", cfg.RateLimit.Messages, cfg.RateLimit.Window),
				handlers.Chat.SendMessage,
			)

			protected.GET("/ws/chats/:id", handlers.WebSocket.HandleChat)
		}

		admin := v1.Group("/admin")
		admin.Use(identity.RequireAuth(), middleware.RequireAdmin())
		{
			admin.GET("/properties", handlers.Admin.ListProperties)
			admin.GET("/queue", handlers.Admin.Queue)
			admin.POST("/properties/:id/verifier", handlers.Admin.AssignVerifier)
			admin.POST("/properties/:id/decision", handlers.Admin.Decide)
			admin.PATCH("/users/:id/role", handlers.Admin.ChangeUserRole)
		}
	}

	return router
}
