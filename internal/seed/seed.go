package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"

	authdomain "github.com/smallbiznis/bizops/internal/auth/domain"
	"github.com/smallbiznis/bizops/internal/auth/password"
	"github.com/smallbiznis/bizops/internal/config"
	organizationdomain "github.com/smallbiznis/bizops/internal/organization/domain"
	profiledomain "github.com/smallbiznis/bizops/internal/profile/domain"
)

const (
	defaultOrgName = "Main"
	defaultOrgSlug = "main"
)

// EnsureBootstrapAdmin seeds the configured admin account with an owned
// default organization. It is idempotent and a no-op when no bootstrap
// credentials are configured.
func EnsureBootstrapAdmin(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	email := strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminEmail))
	secret := cfg.BootstrapAdminPassword
	if email == "" || secret == "" {
		return nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureMainOrg(ctx, tx, node)
		if err != nil {
			return err
		}

		user, err := ensureAdminUser(ctx, tx, node, email, secret)
		if err != nil {
			return err
		}

		if err := ensureOwnerMembership(ctx, tx, node, org.ID, user.ID); err != nil {
			return err
		}

		return ensureAdminProfile(ctx, tx, org.ID, user)
	})
}

func ensureMainOrg(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (*organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", defaultOrgSlug).First(&org).Error
	if err == nil {
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	org = organizationdomain.Organization{
		ID:        node.Generate(),
		Name:      defaultOrgName,
		Slug:      defaultOrgSlug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func ensureAdminUser(ctx context.Context, tx *gorm.DB, node *snowflake.Node, email, secret string) (*authdomain.User, error) {
	var user authdomain.User
	err := tx.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(secret)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user = authdomain.User{
		ID:               node.Generate(),
		ExternalID:       uuid.NewString(),
		Provider:         "local",
		DisplayName:      "Admin",
		Email:            email,
		PasswordHash:     &hashed,
		EmailConfirmedAt: &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func ensureOwnerMembership(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID, userID snowflake.ID) error {
	var member organizationdomain.OrganizationMember
	err := tx.WithContext(ctx).Where("org_id = ? AND user_id = ?", orgID, userID).First(&member).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	member = organizationdomain.OrganizationMember{
		ID:        node.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      organizationdomain.RoleOwner,
		CreatedAt: time.Now().UTC(),
	}
	return tx.WithContext(ctx).Create(&member).Error
}

func ensureAdminProfile(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, user *authdomain.User) error {
	var profile profiledomain.Profile
	err := tx.WithContext(ctx).Where("user_id = ?", user.ID).First(&profile).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	profile = profiledomain.Profile{
		UserID:         user.ID,
		Email:          user.Email,
		FullName:       user.DisplayName,
		EmailVerified:  true,
		OrgID:          &orgID,
		Role:           organizationdomain.RoleOwner,
		HasSeenWelcome: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return tx.WithContext(ctx).Create(&profile).Error
}
