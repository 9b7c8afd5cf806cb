// Package router provides DocChat service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/handler"
)

// Register registers the DocChat service routes.
func Register(engine *gin.Engine, h *handler.Handler) {
	logger.Info("Registering DocChat routes...")

	engine.GET("/healthz", h.Healthz)

	api := engine.Group("/api")
	{
		api.POST("/upload", h.Upload)
		api.POST("/query", h.Query)
		api.POST("/validate-key", h.ValidateKey)

		api.GET("/documents", h.ListDocuments)
		api.GET("/documents/:id/file", h.DocumentFile)

		api.GET("/chats", h.ListChats)
		api.GET("/chats/:id", h.GetChat)
		api.DELETE("/chats/:id", h.DeleteChat)
	}

	logger.Info("HTTP routes registered")
}
