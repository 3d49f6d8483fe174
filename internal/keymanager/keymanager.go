package keymanager

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"synergize/internal/model"
)

const (
	keyLength   = 28
	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	ErrLabelRequired     = errors.New("label is required")
	ErrInvalidUsageLimit = errors.New("usage limit must not be negative")
	ErrLoadFailed        = errors.New("failed to load API keys")
)

// Store is the subset of the credential store used for key lifecycle operations.
type Store interface {
	ListAPIKeys(ctx context.Context) ([]model.APIKey, error)
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKey(ctx context.Context, id uint) (*model.APIKey, error)
	UpdateAPIKeyDetails(ctx context.Context, id uint, label, description string) (*model.APIKey, error)
	SetAPIKeyActive(ctx context.Context, id uint, active bool) (*model.APIKey, error)
	DeleteAPIKey(ctx context.Context, id uint) (*model.APIKey, error)
}

// CreateRequest holds the caller supplied fields of a new key.
type CreateRequest struct {
	Label       string
	Description string
	UsageLimit  *int
}

// Manager creates, lists, updates and removes API keys.
type Manager struct {
	store  Store
	logger *slog.Logger
}

// NewManager creates a new Manager.
func NewManager(store Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger.With("component", "keymanager")}
}

// List returns every key in store order.
func (m *Manager) List(ctx context.Context) ([]model.APIKey, error) {
	keys, err := m.store.ListAPIKeys(ctx)
	if err != nil {
		m.logger.Error("Failed to list API keys", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return keys, nil
}

// Create generates a fresh key and persists it with zero usage.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*model.APIKey, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return nil, ErrLabelRequired
	}
	if req.UsageLimit != nil && *req.UsageLimit < 0 {
		return nil, ErrInvalidUsageLimit
	}

	secret, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	key := &model.APIKey{
		Key:         secret,
		Label:       label,
		Description: req.Description,
		Usage:       0,
		UsageLimit:  req.UsageLimit,
		IsActive:    true,
	}
	if err := m.store.CreateAPIKey(ctx, key); err != nil {
		return nil, err
	}
	m.logger.Info("Created API key", "key_id", key.ID, "key_suffix", key.Suffix())
	return key, nil
}

func (m *Manager) Get(ctx context.Context, id uint) (*model.APIKey, error) {
	return m.store.GetAPIKey(ctx, id)
}

// Update changes the label and description of a key. Nothing else is mutable.
func (m *Manager) Update(ctx context.Context, id uint, label, description string) (*model.APIKey, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrLabelRequired
	}
	return m.store.UpdateAPIKeyDetails(ctx, id, label, description)
}

// Delete removes a key permanently and returns the removed record.
func (m *Manager) Delete(ctx context.Context, id uint) (*model.APIKey, error) {
	key, err := m.store.DeleteAPIKey(ctx, id)
	if err != nil {
		return nil, err
	}
	m.logger.Info("Deleted API key", "key_id", key.ID, "key_suffix", key.Suffix())
	return key, nil
}

// SetActive activates or deactivates a key.
func (m *Manager) SetActive(ctx context.Context, id uint, active bool) (*model.APIKey, error) {
	key, err := m.store.SetAPIKeyActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	m.logger.Info("Changed API key state", "key_id", key.ID, "active", active)
	return key, nil
}

// GenerateKey returns "tvly-" followed by 28 random alphanumeric characters.
func GenerateKey() (string, error) {
	var b strings.Builder
	b.Grow(len(model.KeyPrefix) + keyLength)
	b.WriteString(model.KeyPrefix)
	max := big.NewInt(int64(len(keyAlphabet)))
	for i := 0; i < keyLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate key: %w", err)
		}
		b.WriteByte(keyAlphabet[n.Int64()])
	}
	return b.String(), nil
}
