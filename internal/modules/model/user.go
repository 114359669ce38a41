package model

import (
	"time"
)

// User holds three generations of credential storage: legacy plaintext
// columns (email, api_key) that only the migration reads, digests that
// every lookup uses, and a transitional plaintext email shadow.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	DeveloperTag string `gorm:"type:varchar(50);not null;uniqueIndex:idx_users_developer_tag" json:"developer_tag"`

	LegacyEmail  *string `gorm:"column:email;type:varchar(120);uniqueIndex:idx_users_email" json:"-"`
	EmailHash    *string `gorm:"type:varchar(64);uniqueIndex:idx_users_email_hash" json:"-"`
	EmailShadow  *string `gorm:"column:email_shadow;type:varchar(120)" json:"-"`
	PasswordHash string  `gorm:"type:varchar(255);not null" json:"-"`

	TwoFAEnabled  bool `gorm:"column:two_fa_enabled;not null;default:false" json:"two_fa_enabled"`
	TwoFAVerified bool `gorm:"column:two_fa_verified;not null;default:false" json:"two_fa_verified"`

	LegacyAPIKey *string `gorm:"column:api_key;type:varchar(64);uniqueIndex:idx_users_api_key" json:"-"`
	APIKeyHash   *string `gorm:"type:varchar(64);uniqueIndex:idx_users_api_key_hash" json:"-"`
	APIEnabled   bool    `gorm:"not null;default:false" json:"api_enabled"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) HasAPIKey() bool {
	return u.APIEnabled && u.APIKeyHash != nil && *u.APIKeyHash != ""
}
