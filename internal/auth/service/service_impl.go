package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/bizops/internal/auth/domain"
	"github.com/smallbiznis/bizops/internal/auth/password"
	"github.com/smallbiznis/bizops/internal/clock"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	sessionTTL        = 7 * 24 * time.Hour

	defaultLoginTokenTTL = time.Hour

	minPasswordLength = 8
)

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	sessions domain.SessionRepository
	tokens   domain.LoginTokenRepository
	genID    *snowflake.Node
	clock    clock.Clock
}

func New(log *zap.Logger, repo domain.Repository, sessions domain.SessionRepository, tokens domain.LoginTokenRepository, genID *snowflake.Node, clk clock.Clock) domain.Service {
	return &Service{
		log:      log.Named("auth.service"),
		repo:     repo,
		sessions: sessions,
		tokens:   tokens,
		genID:    genID,
		clock:    clk,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrInvalidCredentials
	}

	if _, err := s.repo.FindOne(ctx, domain.User{Email: email}); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = defaultDisplayName(email)
	}

	user := &domain.User{
		ID:           s.genID.Generate(),
		ExternalID:   uuid.NewString(),
		Provider:     "local",
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: &hashed,
	}
	if req.Confirmed {
		now := s.clock.Now()
		user.EmailConfirmedAt = &now
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) UserByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindOne(ctx, domain.User{Email: email, Provider: "local"})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == nil || !password.Verify(req.Password, *user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	// Credentials are correct but the address was never confirmed; the
	// join flow must not proceed to invitation acceptance from here.
	if !user.EmailConfirmed() {
		return nil, domain.ErrEmailNotConfirmed
	}

	return s.createSession(ctx, user, req.UserAgent, req.IPAddress)
}

func (s *Service) IssueLoginTokens(ctx context.Context, userID snowflake.ID, ttl time.Duration) (*domain.LoginTokenPair, error) {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultLoginTokenTTL
	}

	access, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	token := &domain.LoginToken{
		ID:               s.genID.Generate(),
		UserID:           userID,
		AccessTokenHash:  hashToken(access),
		RefreshTokenHash: hashToken(refresh),
		ExpiresAt:        now.Add(ttl),
		CreatedAt:        now,
	}
	if err := s.tokens.CreateLoginToken(ctx, token); err != nil {
		return nil, err
	}

	return &domain.LoginTokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    token.ExpiresAt,
	}, nil
}

func (s *Service) EstablishFromRedirect(ctx context.Context, req domain.ExchangeRequest) (*domain.LoginResult, error) {
	access := strings.TrimSpace(req.AccessToken)
	refresh := strings.TrimSpace(req.RefreshToken)
	if access == "" || refresh == "" {
		return nil, domain.ErrSessionExchangeFailed
	}

	token, err := s.tokens.GetLoginTokenByAccessHash(ctx, hashToken(access))
	if err != nil {
		if errors.Is(err, domain.ErrSessionExchangeFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSessionExchangeFailed, err)
	}

	if subtle.ConstantTimeCompare([]byte(token.RefreshTokenHash), []byte(hashToken(refresh))) != 1 {
		return nil, domain.ErrSessionExchangeFailed
	}

	now := s.clock.Now()
	if token.ConsumedAt != nil || now.After(token.ExpiresAt) {
		return nil, domain.ErrSessionExchangeFailed
	}

	// The conditional update is the at-most-once authority: a second
	// concurrent exchange of the same pair loses here.
	if err := s.tokens.ConsumeLoginToken(ctx, token.ID, now); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSessionExchangeFailed, err)
	}

	// Opening an emailed link proves ownership of the address.
	if !user.EmailConfirmed() {
		if err := s.ConfirmEmail(ctx, user.ID); err != nil {
			s.log.Warn("confirm email after exchange", zap.Error(err))
		} else {
			confirmed := now
			user.EmailConfirmedAt = &confirmed
		}
	}

	return s.createSession(ctx, user, req.UserAgent, req.IPAddress)
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidSession
	}

	session, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrInvalidSession
		}
		return err
	}

	return s.sessions.RevokeSession(ctx, session.ID, s.clock.Now())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	if err := s.sessions.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *Service) ConfirmEmail(ctx context.Context, userID snowflake.ID) error {
	now := s.clock.Now()
	return s.repo.UpdateFields(ctx, userID, map[string]any{
		"email_confirmed_at": &now,
		"updated_at":         now,
	})
}

func (s *Service) createSession(ctx context.Context, user *domain.User, userAgent, ipAddress string) (*domain.LoginResult, error) {
	rawToken, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &domain.Session{
		ID:               s.genID.Generate(),
		UserID:           user.ID,
		Email:            user.Email,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(userAgent),
		IPAddress:        strings.TrimSpace(ipAddress),
		Metadata:         map[string]any{},
		ExpiresAt:        now.Add(sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		Session: &domain.SessionView{
			Metadata: map[string]any{
				"user_id":         user.ID.String(),
				"external_id":     user.ExternalID,
				"provider":        user.Provider,
				"display_name":    user.DisplayName,
				"email":           user.Email,
				"email_confirmed": user.EmailConfirmed(),
			},
		},
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
		UserID:    user.ID,
		Email:     user.Email,
	}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func defaultDisplayName(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		return strings.TrimSpace(parts[0])
	}
	return email
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
