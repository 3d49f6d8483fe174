package model

import "time"

// KeyPrefix is prepended to every generated API key.
const KeyPrefix = "tvly-"

// APIKey represents a client's API key stored in the api_keys table.
type APIKey struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Key         string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"key"`
	Label       string    `gorm:"type:varchar(255);not null" json:"label"`
	Description string    `gorm:"type:text" json:"description"`
	Usage       int       `gorm:"column:usage_count;default:0;not null;check:usage_count >= 0" json:"usage"`
	UsageLimit  *int      `json:"usageLimit"`
	IsActive    bool      `gorm:"default:true;not null" json:"is_active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName pins the table name regardless of naming strategy.
func (APIKey) TableName() string { return "api_keys" }

// LimitReached reports whether the key has used up its usage cap.
// A nil UsageLimit means unlimited.
func (k *APIKey) LimitReached() bool {
	return k.UsageLimit != nil && k.Usage >= *k.UsageLimit
}

// Suffix returns the last 4 characters of the key for logging.
func (k *APIKey) Suffix() string {
	if len(k.Key) > 4 {
		return k.Key[len(k.Key)-4:]
	}
	return k.Key
}
