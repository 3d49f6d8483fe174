package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"synergize/internal/config"
	"synergize/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Service is the credential store used by the rest of the application.
// Every error it returns is a *StoreError.
type Service interface {
	ListAPIKeys(ctx context.Context) ([]model.APIKey, error)
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKey(ctx context.Context, id uint) (*model.APIKey, error)
	FindAPIKeyByKey(ctx context.Context, key string) (*model.APIKey, error)
	UpdateAPIKeyDetails(ctx context.Context, id uint, label, description string) (*model.APIKey, error)
	SetAPIKeyActive(ctx context.Context, id uint, active bool) (*model.APIKey, error)
	DeleteAPIKey(ctx context.Context, id uint) (*model.APIKey, error)
	IncrementAPIKeyUsageCount(ctx context.Context, key string) error
	ResetAllAPIKeyUsage(ctx context.Context) error
	Probe(ctx context.Context) (*ProbeResult, error)
	GetDB() *gorm.DB
}

type service struct {
	db *gorm.DB
}

// NewService opens the database described by cfg and migrates the schema
// unless migration is disabled.
func NewService(cfg config.DatabaseConfig) (Service, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Each connection to an in-memory sqlite database sees its own empty database.
	if cfg.Type == "sqlite" && strings.Contains(cfg.DSN, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if cfg.ShouldMigrate() {
		if err := db.AutoMigrate(&model.APIKey{}); err != nil {
			return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
		}
	}

	return &service{db: db}, nil
}

// NewServiceFromDB wraps an existing gorm handle.
func NewServiceFromDB(db *gorm.DB) Service {
	return &service{db: db}
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

// ListAPIKeys returns every key in store order.
func (s *service) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.WithContext(ctx).Find(&keys).Error; err != nil {
		return nil, wrap("list api keys", err)
	}
	return keys, nil
}

func (s *service) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	return wrap("create api key", s.db.WithContext(ctx).Create(key).Error)
}

func (s *service) GetAPIKey(ctx context.Context, id uint) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.WithContext(ctx).First(&key, id).Error; err != nil {
		return nil, wrap("get api key", err)
	}
	return &key, nil
}

// FindAPIKeyByKey looks up a single key by exact match.
func (s *service) FindAPIKeyByKey(ctx context.Context, key string) (*model.APIKey, error) {
	var apiKey model.APIKey
	if err := s.db.WithContext(ctx).Where(map[string]interface{}{"key": key}).Take(&apiKey).Error; err != nil {
		return nil, wrap("find api key", err)
	}
	return &apiKey, nil
}

// UpdateAPIKeyDetails changes only the label and description of a key.
func (s *service) UpdateAPIKeyDetails(ctx context.Context, id uint, label, description string) (*model.APIKey, error) {
	return s.updateByID(ctx, "update api key", id, map[string]interface{}{
		"label":       label,
		"description": description,
	})
}

func (s *service) SetAPIKeyActive(ctx context.Context, id uint, active bool) (*model.APIKey, error) {
	return s.updateByID(ctx, "set api key active", id, map[string]interface{}{
		"is_active": active,
	})
}

func (s *service) updateByID(ctx context.Context, op string, id uint, updates map[string]interface{}) (*model.APIKey, error) {
	var key model.APIKey
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.APIKey{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&key, id).Error
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	return &key, nil
}

// DeleteAPIKey removes a key and returns the deleted record.
func (s *service) DeleteAPIKey(ctx context.Context, id uint) (*model.APIKey, error) {
	var key model.APIKey
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&key, id).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.APIKey{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, wrap("delete api key", err)
	}
	return &key, nil
}

// IncrementAPIKeyUsageCount atomically increments the usage count for a given API key.
func (s *service) IncrementAPIKeyUsageCount(ctx context.Context, key string) error {
	result := s.db.WithContext(ctx).Model(&model.APIKey{}).
		Where(map[string]interface{}{"key": key}).
		UpdateColumn("usage_count", gorm.Expr("? + 1", clause.Column{Name: "usage_count"}))
	if result.Error != nil {
		return wrap("increment api key usage", result.Error)
	}
	if result.RowsAffected == 0 {
		return wrap("increment api key usage", gorm.ErrRecordNotFound)
	}
	return nil
}

// ResetAllAPIKeyUsage resets the usage count of all API keys to 0.
func (s *service) ResetAllAPIKeyUsage(ctx context.Context) error {
	result := s.db.WithContext(ctx).Model(&model.APIKey{}).Where("usage_count > 0").UpdateColumn("usage_count", 0)
	return wrap("reset api key usage", result.Error)
}

// ProbeResult describes store reachability and the shape of the api_keys table.
type ProbeResult struct {
	HasTable            bool     `json:"hasTable"`
	HasRequiredColumns  bool     `json:"hasRequiredColumns"`
	HasIsActiveColumn   bool     `json:"hasIsActiveColumn"`
	HasCreatedAtColumn  bool     `json:"hasCreatedAtColumn"`
	HasUsageLimitColumn bool     `json:"hasUsageLimitColumn"`
	Columns             []string `json:"columns"`
	KeyCount            int64    `json:"keyCount"`
}

// Probe pings the database and inspects the api_keys table.
func (s *service) Probe(ctx context.Context) (*ProbeResult, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, wrap("probe", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, &StoreError{Op: "probe", Kind: ErrConnection, Err: err}
	}

	db := s.db.WithContext(ctx)
	migrator := db.Migrator()
	if !migrator.HasTable(&model.APIKey{}) {
		return nil, &StoreError{Op: "probe", Kind: ErrTableMissing, Err: errors.New("api_keys not found")}
	}

	result := &ProbeResult{HasTable: true}
	columnTypes, err := migrator.ColumnTypes(&model.APIKey{})
	if err != nil {
		return nil, wrap("probe", err)
	}
	present := make(map[string]bool, len(columnTypes))
	for _, ct := range columnTypes {
		result.Columns = append(result.Columns, ct.Name())
		present[ct.Name()] = true
	}
	result.HasRequiredColumns = present["id"] && present["key"]
	result.HasIsActiveColumn = present["is_active"]
	result.HasCreatedAtColumn = present["created_at"]
	result.HasUsageLimitColumn = present["usage_limit"]

	if err := db.Model(&model.APIKey{}).Count(&result.KeyCount).Error; err != nil {
		return nil, wrap("probe", err)
	}
	return result, nil
}
