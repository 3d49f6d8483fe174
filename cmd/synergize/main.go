package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"synergize/internal/admin"
	"synergize/internal/api"
	"synergize/internal/config"
	"synergize/internal/db"
	"synergize/internal/github"
	"synergize/internal/llm"
	"synergize/internal/logger"
	"synergize/internal/scheduler"
	"synergize/internal/summarizer"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// customRecovery is a middleware that recovers from panics and handles http.ErrAbortHandler gracefully.
func customRecovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					log.Warn("Client connection aborted", "path", c.Request.URL.Path)
					c.Abort()
					return
				}

				log.Error("Panic recovered",
					"error", recovered,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"valid":   false,
					"status":  "internal_error",
					"error":   "Internal server error",
					"details": "An unexpected error occurred while processing your request.",
				})
			}
		}()
		c.Next()
	}
}

// newRouter wires every route. dbService may be nil when no database is configured.
func newRouter(cfg *config.Config, log *slog.Logger, dbService db.Service, summaries api.Summarizer) *gin.Engine {
	router := gin.New()
	router.Use(customRecovery(log))
	router.Use(logger.Middleware(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.SetupRoutes(router, api.NewHandler(dbService, summaries, log))
	admin.SetupRoutes(router, dbService, cfg, log)
	return router
}

// runServer serves router until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, cfg *config.Config, log *slog.Logger, router http.Handler) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	// The server has 5 seconds to finish the requests it is currently handling.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func setupAndRunServer(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var dbService db.Service
	if cfg.Database.Configured() {
		var err error
		dbService, err = db.NewService(cfg.Database)
		if err != nil {
			return fmt.Errorf("error initializing database: %w", err)
		}
		log.Info("Database initialized", "type", cfg.Database.Type)

		s := scheduler.NewScheduler(dbService, cfg.Scheduler.UsageResetSpec, log)
		if err := s.Start(); err != nil {
			return err
		}
		defer s.Stop()
	}

	completer, err := llm.New(ctx, cfg.LLM)
	switch {
	case errors.Is(err, llm.ErrUnconfigured):
		// Summaries without a README still work; the rest report summarizer_unconfigured.
	case err != nil:
		return fmt.Errorf("error creating LLM client: %w", err)
	default:
		defer completer.Close()
		log.Info("LLM client initialized", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}

	readmes := github.NewClient(cfg.GitHub.APIURL, cfg.GitHub.UserAgent, cfg.GitHub.Token)
	pipeline := summarizer.NewPipeline(readmes, completer, log)

	return runServer(ctx, cfg, log, newRouter(cfg, log, dbService, pipeline))
}

func main() {
	// Load configuration
	cfg, warnings, err := config.LoadConfig("config.yaml")
	if err != nil {
		// Use a temporary logger for startup errors
		slog.Error("Error loading configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	log := logger.New(cfg.Debug)
	log.Info("Logger initialized", "debug_mode", cfg.Debug)
	for _, warning := range warnings {
		log.Warn(warning)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := setupAndRunServer(ctx, cfg, log); err != nil {
		log.Error("Server error", "error", err)
		os.Exit(1)
	}
	log.Info("Server exiting")
}
