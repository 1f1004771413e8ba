package router

import (
	"github.com/gin-gonic/gin"

	"fitpulse.app/coach/internal/http/handler"
)

func ChatRouter(router *gin.RouterGroup, handler *handler.ChatHandler) {
	router.POST("/messages", handler.Submit)
	router.GET("/messages", handler.List)
}
