package router

import (
	"github.com/gin-gonic/gin"

	"fitpulse.app/coach/internal/backend"
	"fitpulse.app/coach/internal/http/handler"
	"fitpulse.app/coach/internal/http/middleware"
	"fitpulse.app/coach/internal/service"
)

func SetupRoutes(router *gin.Engine, chatService *service.ChatService, profiles backend.ProfileClient) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireAuth(profiles))
	{
		chatHandler := handler.NewChatHandler(chatService)
		ChatRouter(v1.Group("/chat"), chatHandler)
	}
}
