package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"chatconnect.app/assistant/internal/http/handler"
	"chatconnect.app/assistant/internal/http/middleware"
)

type RouterConfig struct {
	Sessions     handler.Sessions
	Relay        handler.PageRelay
	PingInterval time.Duration
}

func SetupRoutes(router *gin.Engine, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		sessions := v1.Group("/sessions/:session_id", middleware.SessionFields())
		AssistantRouter(sessions,
			handler.NewAssistantHandler(cfg.Sessions),
			handler.NewStreamHandler(cfg.Sessions, cfg.Relay, cfg.PingInterval),
		)
	}
}
