package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"synergize/internal/db"
	"synergize/internal/model"

	"github.com/gin-gonic/gin"
)

var (
	ErrMissingKey         = errors.New("api key is required")
	ErrInvalidFormat      = errors.New("api key format is invalid")
	ErrKeyNotFound        = errors.New("api key not found")
	ErrKeyInactive        = errors.New("api key is inactive")
	ErrUsageLimitExceeded = errors.New("api key usage limit exceeded")
)

// KeyFinder looks up a key record by its exact key string.
type KeyFinder interface {
	FindAPIKeyByKey(ctx context.Context, key string) (*model.APIKey, error)
}

// Validator checks presented API keys against the store.
type Validator struct {
	store  KeyFinder
	logger *slog.Logger
}

func NewValidator(store KeyFinder, logger *slog.Logger) *Validator {
	return &Validator{store: store, logger: logger.With("component", "auth")}
}

// Validate returns the record for raw when it exists and is active.
// Store failures other than a missing row are returned unchanged.
func (v *Validator) Validate(ctx context.Context, raw string) (*model.APIKey, error) {
	if raw == "" {
		return nil, ErrMissingKey
	}
	if strings.TrimSpace(raw) == "" {
		return nil, ErrInvalidFormat
	}
	if !strings.HasPrefix(raw, model.KeyPrefix) {
		v.logger.Debug("API key has unexpected prefix", "key_prefix", prefix(raw))
	}

	key, err := v.store.FindAPIKeyByKey(ctx, raw)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	if !key.IsActive {
		return nil, fmt.Errorf("key %d: %w", key.ID, ErrKeyInactive)
	}
	return key, nil
}

// CheckQuota fails when the key has a usage limit and has reached it.
func CheckQuota(key *model.APIKey) error {
	if key.LimitReached() {
		return fmt.Errorf("%d of %d used: %w", key.Usage, *key.UsageLimit, ErrUsageLimitExceeded)
	}
	return nil
}

func prefix(raw string) string {
	if len(raw) > 5 {
		return raw[:5]
	}
	return raw
}

// AdminAuthMiddleware requires HTTP basic auth as "admin" with the given password.
func AdminAuthMiddleware(adminPassword string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, password, hasAuth := c.Request.BasicAuth()
		if !hasAuth || user != "admin" || password != adminPassword {
			c.Header("WWW-Authenticate", `Basic realm="Restricted"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"valid":   false,
				"status":  "unauthorized",
				"error":   "Unauthorized",
				"details": "Key management requires admin credentials",
			})
			return
		}
		c.Next()
	}
}
