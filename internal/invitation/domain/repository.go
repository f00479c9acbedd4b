package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invitation *Invitation) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*Invitation, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	ListByOrg(ctx context.Context, orgID snowflake.ID) ([]Invitation, error)
	// MarkAccepted flips the row pending -> accepted only while it is still
	// pending and unexpired at now; it reports ErrTokenAlreadyUsed when the
	// guarded update matches no row.
	MarkAccepted(ctx context.Context, tokenHash string, userID snowflake.ID, now time.Time) error
	UpdateStatus(ctx context.Context, id snowflake.ID, status InvitationStatus, now time.Time) error
}
