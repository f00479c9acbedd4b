package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrProfileNotFound = errors.New("profile not found")

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, userID snowflake.ID) (*Profile, error)
	Create(ctx context.Context, profile *Profile) error
	// UpdateFields applies a field-level partial update so concurrent writers
	// of unrelated columns are never clobbered.
	UpdateFields(ctx context.Context, userID snowflake.ID, fields map[string]any) error
}
