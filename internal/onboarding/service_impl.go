package onboarding

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	authdomain "github.com/smallbiznis/bizops/internal/auth/domain"
	invitedomain "github.com/smallbiznis/bizops/internal/invitation/domain"
	"github.com/smallbiznis/bizops/internal/onboarding/domain"
	orgdomain "github.com/smallbiznis/bizops/internal/organization/domain"
	profiledomain "github.com/smallbiznis/bizops/internal/profile/domain"
	"github.com/smallbiznis/bizops/internal/ratelimit"
)

type service struct {
	log        *zap.Logger
	authsvc    authdomain.Service
	orgsvc     orgdomain.Service
	profilesvc profiledomain.Service
	invitesvc  invitedomain.Service
	limiter    *ratelimit.LoginLimiter
}

func NewService(
	log *zap.Logger,
	authsvc authdomain.Service,
	orgsvc orgdomain.Service,
	profilesvc profiledomain.Service,
	invitesvc invitedomain.Service,
	limiter *ratelimit.LoginLimiter,
) domain.Service {
	return &service{
		log:        log.Named("onboarding.service"),
		authsvc:    authsvc,
		orgsvc:     orgsvc,
		profilesvc: profilesvc,
		invitesvc:  invitesvc,
		limiter:    limiter,
	}
}

func (s *service) Join(ctx context.Context, req domain.JoinRequest) (*domain.JoinResult, error) {
	login, err := s.authsvc.EstablishFromRedirect(ctx, authdomain.ExchangeRequest{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		UserAgent:    req.UserAgent,
		IPAddress:    req.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	// Exchanging a token pair mailed to the address proves ownership.
	s.syncProfile(ctx, login.UserID, login.Email, "", true)

	result := &domain.JoinResult{
		Session:   login.Session,
		RawToken:  login.RawToken,
		ExpiresAt: login.ExpiresAt,
		UserID:    login.UserID.String(),
	}

	if token := strings.TrimSpace(req.InviteToken); token != "" {
		s.acceptInvite(ctx, result, login, token)
	}

	result.Destination = s.route(ctx, login.UserID)
	return result, nil
}

// acceptInvite consumes the token on behalf of the freshly established
// session. A failed acceptance never tears the session down; the outcome
// is reported alongside it so the client can explain what happened.
func (s *service) acceptInvite(ctx context.Context, result *domain.JoinResult, login *authdomain.LoginResult, token string) {
	lockToken, ok, err := s.limiter.TryLockJoin(ctx, token)
	if err != nil {
		s.log.Warn("join lock unavailable", zap.Error(err))
	} else if !ok {
		result.InviteError = string(invitedomain.ReasonAlreadyUsed)
		return
	} else {
		defer func() {
			if err := s.limiter.ReleaseJoin(ctx, token, lockToken); err != nil {
				s.log.Warn("join lock release failed", zap.Error(err))
			}
		}()
	}

	acc, err := s.invitesvc.Accept(ctx, login.UserID, login.Email, token)
	if err != nil {
		result.InviteError = classifyInviteError(err)
		s.log.Info("invite acceptance failed",
			zap.String("user_id", login.UserID.String()),
			zap.String("reason", result.InviteError),
		)
		return
	}

	result.OrgID = acc.OrgID
	result.Role = acc.Role
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.SignupResult, error) {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidRequest
	}

	orgName := strings.TrimSpace(req.OrgName)
	if orgName == "" {
		orgName = strings.TrimSpace(req.FullName)
	}
	if orgName == "" {
		return nil, domain.ErrInvalidRequest
	}

	user, err := s.authsvc.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.FullName,
		Confirmed:   true,
	})
	if err != nil {
		return nil, err
	}

	org, err := s.orgsvc.Create(ctx, user.ID, orgdomain.CreateOrganizationRequest{
		Name: orgName,
	})
	if err != nil {
		return nil, err
	}

	login, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	s.syncProfile(ctx, user.ID, user.Email, req.FullName, true)

	return &domain.SignupResult{
		Session:   login.Session,
		RawToken:  login.RawToken,
		ExpiresAt: login.ExpiresAt,
		OrgID:     org.ID,
		UserID:    user.ID.String(),
	}, nil
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.JoinResult, error) {
	token := strings.TrimSpace(req.InviteToken)
	if token == "" || strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidRequest
	}

	validation := s.invitesvc.Validate(ctx, token, req.Email)
	if !validation.Valid {
		return nil, reasonToError(validation.Reason)
	}

	// The invited address matches, so the account starts out confirmed.
	user, err := s.authsvc.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.FullName,
		Confirmed:   true,
	})
	if err != nil {
		return nil, err
	}

	login, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	s.syncProfile(ctx, user.ID, user.Email, req.FullName, true)

	result := &domain.JoinResult{
		Session:   login.Session,
		RawToken:  login.RawToken,
		ExpiresAt: login.ExpiresAt,
		UserID:    user.ID.String(),
	}

	s.acceptInvite(ctx, result, login, token)
	result.Destination = s.route(ctx, login.UserID)
	return result, nil
}

// syncProfile is best effort: a profile write failure must not block a
// login that already succeeded.
func (s *service) syncProfile(ctx context.Context, userID snowflake.ID, email, fullName string, confirmed bool) {
	if err := s.profilesvc.Sync(ctx, profiledomain.SyncInput{
		UserID:         userID,
		Email:          email,
		FullName:       fullName,
		EmailConfirmed: confirmed,
	}); err != nil {
		s.log.Warn("profile sync failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
}

func (s *service) route(ctx context.Context, userID snowflake.ID) domain.Destination {
	profile, err := s.profilesvc.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, profiledomain.ErrProfileNotFound) {
			s.log.Warn("profile lookup failed", zap.Error(err))
		}
		return domain.Route(nil)
	}
	return domain.Route(profile)
}

func classifyInviteError(err error) string {
	switch {
	case errors.Is(err, invitedomain.ErrTokenNotFound):
		return string(invitedomain.ReasonNotFound)
	case errors.Is(err, invitedomain.ErrTokenEmailMismatch):
		return string(invitedomain.ReasonEmailMismatch)
	case errors.Is(err, invitedomain.ErrTokenAlreadyUsed):
		return string(invitedomain.ReasonAlreadyUsed)
	case errors.Is(err, invitedomain.ErrTokenExpired):
		return string(invitedomain.ReasonExpired)
	default:
		return string(invitedomain.ReasonLookupFailed)
	}
}

func reasonToError(reason invitedomain.InvalidReason) error {
	switch reason {
	case invitedomain.ReasonNotFound:
		return invitedomain.ErrTokenNotFound
	case invitedomain.ReasonEmailMismatch:
		return invitedomain.ErrTokenEmailMismatch
	case invitedomain.ReasonAlreadyUsed:
		return invitedomain.ErrTokenAlreadyUsed
	case invitedomain.ReasonExpired:
		return invitedomain.ErrTokenExpired
	default:
		return invitedomain.ErrInvalidInvite
	}
}
