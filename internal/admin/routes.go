package admin

import (
	"log/slog"

	"synergize/internal/auth"
	"synergize/internal/config"
	"synergize/internal/db"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, dbService db.Service, cfg *config.Config, logger *slog.Logger) {
	handler := NewHandler(dbService, cfg.Database, logger)

	router.GET("/diagnostics/connection", handler.ConnectionDiagnosticsHandler)

	keysGroup := router.Group("/keys")
	if cfg.Admin.Password != "" {
		keysGroup.Use(auth.AdminAuthMiddleware(cfg.Admin.Password))
	}
	{
		keysGroup.GET("", handler.ListAPIKeysHandler)
		keysGroup.POST("", handler.CreateAPIKeyHandler)
		keysGroup.GET("/:id", handler.GetAPIKeyHandler)
		keysGroup.PUT("/:id", handler.UpdateAPIKeyHandler)
		keysGroup.DELETE("/:id", handler.DeleteAPIKeyHandler)
		keysGroup.POST("/:id/activate", handler.ActivateAPIKeyHandler)
		keysGroup.POST("/:id/deactivate", handler.DeactivateAPIKeyHandler)
	}
}
