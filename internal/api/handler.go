package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"synergize/internal/apperr"
	"synergize/internal/auth"
	"synergize/internal/db"
	"synergize/internal/logger"
	"synergize/internal/summarizer"

	"github.com/gin-gonic/gin"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var gitURLPattern = regexp.MustCompile(`^(https?://|git://|ssh://|git@)\S+$`)

// Summarizer produces repository summaries.
type Summarizer interface {
	Summarize(ctx context.Context, gitURL string) (*summarizer.Summary, error)
	Configured() bool
}

// Handler serves the key validation endpoints.
type Handler struct {
	db         db.Service
	validator  *auth.Validator
	summarizer Summarizer
	logger     *slog.Logger
}

// NewHandler creates a Handler. dbService may be nil when no database is
// configured; every request then fails with configuration_error.
func NewHandler(dbService db.Service, s Summarizer, logger *slog.Logger) *Handler {
	h := &Handler{
		db:         dbService,
		summarizer: s,
		logger:     logger.With("component", "api"),
	}
	if dbService != nil {
		h.validator = auth.NewValidator(dbService, logger)
	}
	return h
}

type validateRequest struct {
	APIKey interface{} `json:"apiKey"`
}

// ValidateKeyHandler checks the API key in the request body.
func (h *Handler) ValidateKeyHandler(c *gin.Context) {
	log := logger.FromContext(c.Request.Context(), h.logger)
	if h.db == nil {
		log.Error("Database not configured")
		apperr.Respond(c, ErrNotConfigured())
		return
	}

	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, ErrInvalidJSON(err))
		return
	}

	var raw string
	switch v := req.APIKey.(type) {
	case nil:
	case string:
		raw = v
	default:
		apperr.Respond(c, MapError(auth.ErrInvalidFormat))
		return
	}
	if raw == "" {
		apperr.Respond(c, missingKey("Please provide an API key in the request body."))
		return
	}

	key, err := h.validator.Validate(c.Request.Context(), raw)
	if err != nil {
		h.respondValidationError(c, log, err)
		return
	}

	log.Info("API key validated", "key_id", key.ID)
	c.JSON(http.StatusOK, gin.H{
		"valid":       true,
		"message":     "API key is valid",
		"keyId":       key.ID,
		"createdAt":   key.CreatedAt,
		"label":       key.Label,
		"description": key.Description,
		"usage":       key.Usage,
		"status":      "valid",
	})
}

// ValidateAndSummarizeHandler validates the x-api-key header and returns an
// AI summary of the requested GitHub repository.
func (h *Handler) ValidateAndSummarizeHandler(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx, h.logger)
	if h.db == nil {
		log.Error("Database not configured")
		apperr.Respond(c, ErrNotConfigured())
		return
	}
	if !h.summarizer.Configured() {
		log.Warn("LLM API key not configured - AI-powered summaries will not be available")
	}

	raw := c.GetHeader("x-api-key")
	if raw == "" {
		apperr.Respond(c, missingKey("Please provide an API key in the x-api-key header."))
		return
	}
	if strings.TrimSpace(raw) == "" {
		apperr.Respond(c, MapError(auth.ErrInvalidFormat))
		return
	}

	gitURL, appErr := extractGitURL(c)
	if appErr != nil {
		apperr.Respond(c, appErr)
		return
	}

	key, err := h.validator.Validate(ctx, raw)
	if err != nil {
		h.respondValidationError(c, log, err)
		return
	}
	if err := auth.CheckQuota(key); err != nil {
		log.Warn("API key usage limit reached", "key_id", key.ID)
		apperr.Respond(c, MapError(err))
		return
	}

	summary, err := h.summarizer.Summarize(ctx, gitURL)
	if err != nil {
		log.Error("Git summary generation failed", "git_url", gitURL, "error", err)
		apperr.Respond(c, summaryError(err))
		return
	}

	if err := h.db.IncrementAPIKeyUsageCount(ctx, key.Key); err != nil {
		log.Warn("Failed to record API key usage", "key_id", key.ID, "error", err)
	}

	log.Info("Git summary generated", "key_id", key.ID, "git_url", gitURL, "summary_status", summary.Status)
	c.JSON(http.StatusOK, gin.H{
		"valid":        true,
		"message":      "Git summary generated successfully",
		"keyId":        key.ID,
		"gitUrl":       gitURL,
		"summary":      summary,
		"ai_available": h.summarizer.Configured(),
		"timestamp":    time.Now().UTC().Format(timestampLayout),
		"status":       "success",
	})
}

func (h *Handler) respondValidationError(c *gin.Context, log *slog.Logger, err error) {
	mapped := MapError(err)
	if mapped.HTTPStatus() >= http.StatusInternalServerError {
		log.Error("API key validation failed", "status", mapped.Tag, "error", err)
	} else {
		log.Info("API key rejected", "status", mapped.Tag)
	}
	apperr.Respond(c, mapped)
}

func missingKey(details string) *apperr.Error {
	return apperr.New(apperr.Validation, "missing_api_key", "API key is required", details)
}

type gitURLRequest struct {
	GitURL interface{} `json:"gitUrl"`
}

// extractGitURL reads gitUrl from the query string, falling back to the JSON
// body, and checks that it names a GitHub repository. The returned URL is trimmed.
func extractGitURL(c *gin.Context) (string, *apperr.Error) {
	value := interface{}(nil)
	if q := c.Query("gitUrl"); q != "" {
		value = q
	} else if c.Request.Body != nil {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return "", ErrInvalidJSON(err)
		}
		if len(bytes.TrimSpace(body)) > 0 {
			var req gitURLRequest
			if err := json.Unmarshal(body, &req); err != nil {
				return "", ErrInvalidJSON(err)
			}
			value = req.GitURL
		}
	}

	if value == nil || value == "" {
		return "", apperr.New(apperr.Validation, "missing_git_url", "Git URL is required",
			"Please provide a git URL either as a query parameter (?gitUrl=...) or in the request body.").
			WithExamples(
				"GET /keys/validate-and-summarize?gitUrl=https://github.com/username/repo",
				`POST /keys/validate-and-summarize with body: {"gitUrl": "https://github.com/username/repo"}`,
			)
	}

	raw, ok := value.(string)
	gitURL := strings.TrimSpace(raw)
	if !ok || gitURL == "" {
		return "", apperr.New(apperr.Validation, "invalid_git_url_format", "Invalid git URL format",
			"Git URL must be a non-empty string.")
	}
	if !gitURLPattern.MatchString(gitURL) {
		return "", apperr.New(apperr.Validation, "invalid_git_url", "Invalid git URL format",
			"Please provide a valid git repository URL (HTTPS, SSH, or git:// protocol).").
			WithExamples(
				"https://github.com/username/repo.git",
				"git@github.com:username/repo.git",
				"ssh://git@github.com/username/repo.git",
			)
	}
	if !strings.Contains(gitURL, "github.com") {
		return "", apperr.New(apperr.Validation, "github_only", "GitHub repository required",
			"Currently, only GitHub repositories are supported for AI-powered analysis.").
			WithSuggestions(
				"Use a GitHub repository URL (e.g., https://github.com/username/repo)",
				"Ensure the repository is public for full analysis",
				"Check that the repository exists and is accessible",
			)
	}
	return gitURL, nil
}
