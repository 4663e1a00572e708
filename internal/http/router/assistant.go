package router

import (
	"github.com/gin-gonic/gin"

	"chatconnect.app/assistant/internal/http/handler"
)

func AssistantRouter(router *gin.RouterGroup, h *handler.AssistantHandler, stream *handler.StreamHandler) {
	router.GET("/state", h.State)
	router.GET("/stream", stream.Stream)
	router.POST("/stop", h.Stop)

	router.POST("/messages", h.SendMessage)
	router.POST("/messages/:message_id/function-results", h.SaveFunctionResult)
	router.POST("/messages/:message_id/function-calls/execute", h.ExecuteFunctionCalls)

	router.POST("/threads", h.NewThread)
	router.GET("/threads", h.ListThreads)
	router.GET("/threads/:thread_id", h.SelectThread)
	router.DELETE("/threads/:thread_id", h.DeleteThread)

	router.POST("/page/results", stream.PageResult)
}
