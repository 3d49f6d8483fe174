package api

import "github.com/gin-gonic/gin"

func SetupRoutes(router *gin.Engine, handler *Handler) {
	keysGroup := router.Group("/keys")
	{
		keysGroup.POST("/validate", handler.ValidateKeyHandler)
		keysGroup.GET("/validate-and-summarize", handler.ValidateAndSummarizeHandler)
		keysGroup.POST("/validate-and-summarize", handler.ValidateAndSummarizeHandler)
	}
}
