package admin

import (
	"log/slog"
	"net/http"
	"strconv"

	"synergize/internal/api"
	"synergize/internal/apperr"
	"synergize/internal/config"
	"synergize/internal/db"
	"synergize/internal/keymanager"
	"synergize/internal/logger"

	"github.com/gin-gonic/gin"
)

type CreateKeyRequest struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	UsageLimit  *int   `json:"usageLimit"`
}

type UpdateKeyRequest struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

type Handler struct {
	db     db.Service
	keys   *keymanager.Manager
	dbCfg  config.DatabaseConfig
	logger *slog.Logger
}

// NewHandler creates a Handler. dbService may be nil when no database is configured.
func NewHandler(dbService db.Service, dbCfg config.DatabaseConfig, logger *slog.Logger) *Handler {
	h := &Handler{db: dbService, dbCfg: dbCfg, logger: logger.With("component", "admin")}
	if dbService != nil {
		h.keys = keymanager.NewManager(dbService, logger)
	}
	return h
}

func (h *Handler) ListAPIKeysHandler(c *gin.Context) {
	if h.db == nil {
		apperr.Respond(c, api.ErrNotConfigured())
		return
	}
	keys, err := h.keys.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

func (h *Handler) CreateAPIKeyHandler(c *gin.Context) {
	if h.db == nil {
		apperr.Respond(c, api.ErrNotConfigured())
		return
	}
	var req CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, api.ErrInvalidJSON(err))
		return
	}

	key, err := h.keys.Create(c.Request.Context(), keymanager.CreateRequest{
		Label:       req.Label,
		Description: req.Description,
		UsageLimit:  req.UsageLimit,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, key)
}

func (h *Handler) GetAPIKeyHandler(c *gin.Context) {
	if h.db == nil {
		apperr.Respond(c, api.ErrNotConfigured())
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	key, err := h.keys.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (h *Handler) UpdateAPIKeyHandler(c *gin.Context) {
	if h.db == nil {
		apperr.Respond(c, api.ErrNotConfigured())
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, api.ErrInvalidJSON(err))
		return
	}

	key, err := h.keys.Update(c.Request.Context(), id, req.Label, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (h *Handler) DeleteAPIKeyHandler(c *gin.Context) {
	if h.db == nil {
		apperr.Respond(c, api.ErrNotConfigured())
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	key, err := h.keys.Delete(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API key deleted", "key": key})
}

func (h *Handler) ActivateAPIKeyHandler(c *gin.Context) {
	h.setActive(c, true)
}

func (h *Handler) DeactivateAPIKeyHandler(c *gin.Context) {
	h.setActive(c, false)
}

func (h *Handler) setActive(c *gin.Context, active bool) {
	if h.db == nil {
		apperr.Respond(c, api.ErrNotConfigured())
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	key, err := h.keys.SetActive(c.Request.Context(), id, active)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

// ConnectionDiagnosticsHandler reports store configuration, reachability and
// the shape of the api_keys table. It always answers 200.
func (h *Handler) ConnectionDiagnosticsHandler(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":  "error",
			"message": "Database not configured",
			"hasType": h.dbCfg.Type != "",
			"hasDsn":  h.dbCfg.DSN != "",
			"type":    setOrMissing(h.dbCfg.Type),
			"dsn":     setOrMissing(h.dbCfg.DSN),
		})
		return
	}

	result, err := h.db.Probe(c.Request.Context())
	if err != nil {
		logger.FromContext(c.Request.Context(), h.logger).Error("Database probe failed", "error", err)
		c.JSON(http.StatusOK, gin.H{
			"status":  "error",
			"message": "Database connection failed",
			"error":   err.Error(),
			"code":    api.MapError(err).Tag,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"message":  "Database connection successful",
		"hasTable": result.HasTable,
		"tableStructure": gin.H{
			"hasRequiredColumns":  result.HasRequiredColumns,
			"hasIsActiveColumn":   result.HasIsActiveColumn,
			"hasCreatedAtColumn":  result.HasCreatedAtColumn,
			"hasUsageLimitColumn": result.HasUsageLimitColumn,
			"columns":             result.Columns,
		},
		"keyCount": result.KeyCount,
	})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	mapped := api.MapError(err)
	if mapped.HTTPStatus() >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), h.logger).Error("Key management request failed", "status", mapped.Tag, "error", err)
	}
	apperr.Respond(c, mapped)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apperr.Respond(c, apperr.New(apperr.Validation, "invalid_id", "Invalid ID",
			"The key id must be a positive integer.").Wrap(err))
		return 0, false
	}
	return uint(id), true
}

func setOrMissing(v string) string {
	if v == "" {
		return "Missing"
	}
	return "Set"
}
