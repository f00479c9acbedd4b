// Package domain contains types for organization invitations and the
// join-by-token flow.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type InvitationStatus string

const (
	StatusPending  InvitationStatus = "pending"
	StatusAccepted InvitationStatus = "accepted"
	StatusExpired  InvitationStatus = "expired"
	StatusRevoked  InvitationStatus = "revoked"
)

var (
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenAlreadyUsed   = errors.New("already used")
	ErrTokenEmailMismatch = errors.New("email mismatch")
	ErrInvalidInvite      = errors.New("invalid invite request")
)

// Invitation is a pending offer to join an organization. The token transitions
// from pending to accepted at most once; expiry is enforced by timestamp
// comparison, never by deletion. Only the token's sha256 digest is stored;
// the raw token exists in the join link alone.
type Invitation struct {
	ID         snowflake.ID     `gorm:"primaryKey" json:"id"`
	TokenHash  string           `gorm:"column:token_hash;type:text;not null;uniqueIndex" json:"-"`
	OrgID      snowflake.ID     `gorm:"not null;index" json:"organization_id"`
	Email      string           `gorm:"type:text;not null" json:"email"`
	Role       string           `gorm:"type:text;not null" json:"role"`
	Status     InvitationStatus `gorm:"type:text;not null;default:'pending'" json:"status"`
	InvitedBy  snowflake.ID     `gorm:"column:invited_by;not null;index" json:"invited_by"`
	ExpiresAt  time.Time        `gorm:"column:expires_at;not null" json:"expires_at"`
	AcceptedBy *snowflake.ID    `gorm:"column:accepted_by" json:"accepted_by,omitempty"`
	AcceptedAt *time.Time       `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	CreatedAt  time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "invitations" }
