// Package domain contains the application-local profile record mirroring an
// identity-provider user.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Profile extends the identity record with organization membership and
// onboarding state. Exactly one profile exists per user id.
type Profile struct {
	UserID         snowflake.ID  `gorm:"primaryKey" json:"user_id"`
	Email          string        `gorm:"type:text;not null" json:"email"`
	FullName       string        `gorm:"type:text" json:"full_name"`
	EmailVerified  bool          `gorm:"column:email_verified;not null;default:false" json:"email_verified"`
	OrgID          *snowflake.ID `gorm:"column:org_id;index" json:"organization_id"`
	Role           string        `gorm:"type:text" json:"role"`
	HasSeenWelcome bool          `gorm:"column:has_seen_welcome;not null;default:false" json:"has_seen_welcome"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "profiles" }
