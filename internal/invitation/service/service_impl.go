package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bizops/internal/clock"
	"github.com/smallbiznis/bizops/internal/config"
	"github.com/smallbiznis/bizops/internal/invitation/domain"
	orgdomain "github.com/smallbiznis/bizops/internal/organization/domain"
	profiledomain "github.com/smallbiznis/bizops/internal/profile/domain"
	"github.com/smallbiznis/bizops/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const joinTokenBytes = 32

type service struct {
	log         *zap.Logger
	db          *gorm.DB
	repo        domain.Repository
	orgRepo     orgdomain.Repository
	profileRepo profiledomain.Repository
	genID       *snowflake.Node
	clock       clock.Clock
	inviteTTL   time.Duration
}

func New(log *zap.Logger, conn *gorm.DB, repo domain.Repository, orgRepo orgdomain.Repository, profileRepo profiledomain.Repository, genID *snowflake.Node, clk clock.Clock, cfg config.Config) domain.Service {
	ttl := time.Duration(cfg.InviteTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &service{
		log:         log.Named("invitation.service"),
		db:          conn,
		repo:        repo,
		orgRepo:     orgRepo,
		profileRepo: profileRepo,
		genID:       genID,
		clock:       clk,
		inviteTTL:   ttl,
	}
}

func (s *service) Validate(ctx context.Context, token, email string) domain.Validation {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Validation{Reason: domain.ReasonNotFound}
	}

	invitation, err := s.repo.GetByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return domain.Validation{Reason: domain.ReasonNotFound}
		}
		s.log.Warn("invitation lookup failed", zap.Error(err))
		return domain.Validation{Reason: domain.ReasonLookupFailed}
	}

	// Email mismatch wins over status and expiry: the link was never meant
	// for this address.
	if email != "" && !emailsMatch(invitation.Email, email) {
		return domain.Validation{Reason: domain.ReasonEmailMismatch}
	}

	if invitation.Status != domain.StatusPending {
		return domain.Validation{Reason: domain.ReasonAlreadyUsed}
	}

	if !s.clock.Now().Before(invitation.ExpiresAt) {
		return domain.Validation{Reason: domain.ReasonExpired}
	}

	valid := domain.Validation{
		Valid: true,
		OrgID: invitation.OrgID.String(),
		Role:  invitation.Role,
	}
	if org, err := s.orgRepo.GetOrganization(ctx, invitation.OrgID); err == nil {
		valid.OrgName = org.Name
	}
	return valid
}

func (s *service) Accept(ctx context.Context, userID snowflake.ID, userEmail, token string) (*domain.AcceptResult, error) {
	token = strings.TrimSpace(token)
	if userID == 0 || token == "" {
		return nil, domain.ErrTokenNotFound
	}

	invitation, err := s.repo.GetByTokenHash(ctx, hashToken(token))
	if err != nil {
		return nil, err
	}

	if invitation.Email != "" && !emailsMatch(invitation.Email, userEmail) {
		return nil, domain.ErrTokenEmailMismatch
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.MarkAccepted(ctx, hashToken(token), userID, now); err != nil {
			if !errors.Is(err, domain.ErrTokenAlreadyUsed) {
				return err
			}
			// The guarded update matched nothing; reread to say why.
			current, readErr := repo.GetByTokenHash(ctx, hashToken(token))
			if readErr != nil {
				return readErr
			}
			if current.Status != domain.StatusPending {
				return domain.ErrTokenAlreadyUsed
			}
			return domain.ErrTokenExpired
		}

		member := orgdomain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     invitation.OrgID,
			UserID:    userID,
			Role:      invitation.Role,
			CreatedAt: now,
		}
		if err := s.orgRepo.WithTx(tx).AddMember(ctx, member); err != nil && !db.IsDuplicateKeyErr(err) {
			return err
		}

		return s.assignProfileOrg(ctx, tx, userID, userEmail, invitation, now)
	})
	if err != nil {
		return nil, err
	}

	return &domain.AcceptResult{
		OrgID: invitation.OrgID.String(),
		Role:  invitation.Role,
	}, nil
}

// assignProfileOrg records the membership on the profile. The profile may not
// exist yet when acceptance runs before the first profile sync.
func (s *service) assignProfileOrg(ctx context.Context, tx *gorm.DB, userID snowflake.ID, userEmail string, invitation *domain.Invitation, now time.Time) error {
	profiles := s.profileRepo.WithTx(tx)
	orgID := invitation.OrgID

	err := profiles.UpdateFields(ctx, userID, map[string]any{
		"org_id":     orgID,
		"role":       invitation.Role,
		"updated_at": now,
	})
	if errors.Is(err, profiledomain.ErrProfileNotFound) {
		return profiles.Create(ctx, &profiledomain.Profile{
			UserID: userID,
			Email:  userEmail,
			OrgID:  &orgID,
			Role:   invitation.Role,
		})
	}
	return err
}

func (s *service) Invite(ctx context.Context, req domain.InviteRequest) (*domain.Invite, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil || req.OrgID == 0 || req.InvitedBy == 0 {
		return nil, domain.ErrInvalidInvite
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = orgdomain.RoleMember
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = s.inviteTTL
	}

	token, err := newJoinToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	invitation := &domain.Invitation{
		ID:        s.genID.Generate(),
		TokenHash: hashToken(token),
		OrgID:     req.OrgID,
		Email:     email,
		Role:      role,
		Status:    domain.StatusPending,
		InvitedBy: req.InvitedBy,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, invitation); err != nil {
		return nil, err
	}

	return &domain.Invite{Invitation: *invitation, Token: token}, nil
}

func (s *service) BatchInvite(ctx context.Context, reqs []domain.InviteRequest) ([]domain.Invite, error) {
	invites := make([]domain.Invite, 0, len(reqs))
	for _, req := range reqs {
		invite, err := s.Invite(ctx, req)
		if err != nil {
			return nil, err
		}
		invites = append(invites, *invite)
	}
	return invites, nil
}

func (s *service) ListByOrg(ctx context.Context, orgID snowflake.ID) ([]domain.Invitation, error) {
	return s.repo.ListByOrg(ctx, orgID)
}

func (s *service) Revoke(ctx context.Context, orgID, inviteID snowflake.ID) error {
	invitation, err := s.repo.GetByID(ctx, inviteID)
	if err != nil {
		return err
	}
	if invitation.OrgID != orgID {
		return domain.ErrTokenNotFound
	}
	if invitation.Status != domain.StatusPending {
		return domain.ErrTokenAlreadyUsed
	}
	return s.repo.UpdateStatus(ctx, inviteID, domain.StatusRevoked, s.clock.Now())
}

func emailsMatch(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func newJoinToken() (string, error) {
	buf := make([]byte, joinTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
