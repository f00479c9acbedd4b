package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// SyncInput is the identity state observed at an authentication event.
type SyncInput struct {
	UserID         snowflake.ID
	Email          string
	FullName       string
	EmailConfirmed bool
}

type Service interface {
	// Sync converges the profile toward the identity provider's view. It is
	// idempotent and safe to call on every authentication event; an
	// already-verified profile produces no write.
	Sync(ctx context.Context, in SyncInput) error
	Get(ctx context.Context, userID snowflake.ID) (*Profile, error)
	MarkWelcomeSeen(ctx context.Context, userID snowflake.ID) error
}
