// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// User represents a system user account.
type User struct {
	ID               snowflake.ID      `gorm:"primaryKey"`
	ExternalID       string            `gorm:"type:text;not null;uniqueIndex"`
	Provider         string            `gorm:"type:text;not null;default:'local'"`
	DisplayName      string            `gorm:"type:text"`
	Email            string            `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash     *string           `gorm:"type:text"`
	EmailConfirmedAt *time.Time        `gorm:"column:email_confirmed_at"`
	Metadata         datatypes.JSONMap `gorm:"serializer:json;not null;default:'{}'"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// EmailConfirmed reports whether the provider recorded an email confirmation.
func (u User) EmailConfirmed() bool { return u.EmailConfirmedAt != nil }

// Session represents a persisted login session.
type Session struct {
	ID               snowflake.ID      `gorm:"primaryKey"`
	UserID           snowflake.ID      `gorm:"column:user_id;not null;index"`
	Email            string            `gorm:"column:email;type:text;not null"`
	SessionTokenHash string            `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string            `gorm:"column:user_agent;type:text"`
	IPAddress        string            `gorm:"column:ip_address;type:text"`
	Metadata         datatypes.JSONMap `gorm:"serializer:json;not null;default:'{}'"`
	ExpiresAt        time.Time         `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time        `gorm:"column:revoked_at"`
	CreatedAt        time.Time         `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt       time.Time         `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// LoginToken is a one-time access/refresh token pair delivered inside a
// magic-link URL. Exchanging the pair for a session consumes it.
type LoginToken struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	AccessTokenHash  string       `gorm:"column:access_token_hash;type:text;not null;uniqueIndex"`
	RefreshTokenHash string       `gorm:"column:refresh_token_hash;type:text;not null"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	ConsumedAt       *time.Time   `gorm:"column:consumed_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LoginToken) TableName() string { return "login_tokens" }

// SessionView is returned to clients without exposing token values.
type SessionView struct {
	Metadata map[string]any `json:"metadata"`
}
