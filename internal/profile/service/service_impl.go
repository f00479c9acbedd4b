package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bizops/internal/clock"
	"github.com/smallbiznis/bizops/internal/profile/domain"
	"github.com/smallbiznis/bizops/pkg/db"
	"go.uber.org/zap"
)

type service struct {
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
}

func New(log *zap.Logger, repo domain.Repository, clk clock.Clock) domain.Service {
	return &service{
		log:   log.Named("profile.service"),
		repo:  repo,
		clock: clk,
	}
}

func (s *service) Sync(ctx context.Context, in domain.SyncInput) error {
	if in.UserID == 0 {
		return errors.New("sync requires a user id")
	}

	profile, err := s.repo.Get(ctx, in.UserID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		created := &domain.Profile{
			UserID:        in.UserID,
			Email:         in.Email,
			FullName:      in.FullName,
			EmailVerified: in.EmailConfirmed,
		}
		if err := s.repo.Create(ctx, created); err != nil {
			// A concurrent sync may have created the row first; converge on
			// the next call instead of failing the authentication event.
			if db.IsDuplicateKeyErr(err) {
				return nil
			}
			return err
		}
		return nil
	}
	if err != nil {
		return err
	}

	// Only the verification flag converges here; everything else is owned
	// by other writers and must not be overwritten.
	if in.EmailConfirmed && !profile.EmailVerified {
		return s.repo.UpdateFields(ctx, in.UserID, map[string]any{
			"email_verified": true,
			"updated_at":     s.clock.Now(),
		})
	}

	return nil
}

func (s *service) Get(ctx context.Context, userID snowflake.ID) (*domain.Profile, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) MarkWelcomeSeen(ctx context.Context, userID snowflake.ID) error {
	return s.repo.UpdateFields(ctx, userID, map[string]any{
		"has_seen_welcome": true,
		"updated_at":       s.clock.Now(),
	})
}
