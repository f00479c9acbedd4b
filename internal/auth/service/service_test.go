package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/bizops/internal/auth/domain"
	"github.com/smallbiznis/bizops/internal/auth/repository"
	"github.com/smallbiznis/bizops/internal/clock"
	"github.com/smallbiznis/bizops/pkg/db"
)

type testDeps struct {
	svc   domain.Service
	db    *gorm.DB
	clock *clock.FakeClock
}

func newTestService(t *testing.T) *testDeps {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.User{}, &domain.Session{}, &domain.LoginToken{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	repo, sessions, tokens := repository.New(dbConn)
	svc := New(zap.NewNop(), repo, sessions, tokens, node, fake)

	return &testDeps{svc: svc, db: dbConn, clock: fake}
}

func (d *testDeps) createUser(t *testing.T, email string, confirmed bool) *domain.User {
	t.Helper()
	user, err := d.svc.CreateUser(context.Background(), domain.CreateUserRequest{
		Email:     email,
		Password:  "correct horse battery",
		Confirmed: confirmed,
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestCreateUserAssignsExternalID(t *testing.T) {
	deps := newTestService(t)

	user := deps.createUser(t, "owner@acme.test", false)

	if user.Provider != "local" {
		t.Fatalf("expected provider local, got %q", user.Provider)
	}
	if _, err := uuid.Parse(user.ExternalID); err != nil {
		t.Fatalf("expected uuid external id, got %q: %v", user.ExternalID, err)
	}
	if user.EmailConfirmed() {
		t.Fatal("expected new user to be unconfirmed")
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	deps := newTestService(t)
	deps.createUser(t, "owner@acme.test", false)

	_, err := deps.svc.CreateUser(context.Background(), domain.CreateUserRequest{
		Email:    "Owner@Acme.Test",
		Password: "another password",
	})
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	deps := newTestService(t)
	deps.createUser(t, "owner@acme.test", true)

	_, err := deps.svc.Login(context.Background(), domain.LoginRequest{
		Email:    "owner@acme.test",
		Password: "not the password",
	})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	deps := newTestService(t)

	_, err := deps.svc.Login(context.Background(), domain.LoginRequest{
		Email:    "nobody@acme.test",
		Password: "whatever password",
	})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnconfirmedEmail(t *testing.T) {
	deps := newTestService(t)
	deps.createUser(t, "owner@acme.test", false)

	_, err := deps.svc.Login(context.Background(), domain.LoginRequest{
		Email:    "owner@acme.test",
		Password: "correct horse battery",
	})
	if !errors.Is(err, domain.ErrEmailNotConfirmed) {
		t.Fatalf("expected ErrEmailNotConfirmed, got %v", err)
	}
	if !domain.IsEmailNotConfirmed(err) {
		t.Fatal("expected IsEmailNotConfirmed to report true")
	}
	if domain.IsEmailNotConfirmed(domain.ErrInvalidCredentials) {
		t.Fatal("expected IsEmailNotConfirmed to report false for bad credentials")
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	deps := newTestService(t)
	user := deps.createUser(t, "owner@acme.test", true)

	result, err := deps.svc.Login(context.Background(), domain.LoginRequest{
		Email:     "owner@acme.test",
		Password:  "correct horse battery",
		UserAgent: "test-agent",
	})
	if err != nil {
		t.Fatalf("failed to login: %v", err)
	}
	if result.RawToken == "" {
		t.Fatal("expected a session token")
	}
	if result.UserID != user.ID {
		t.Fatalf("expected user id %s, got %s", user.ID, result.UserID)
	}

	session, err := deps.svc.Authenticate(context.Background(), result.RawToken)
	if err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}
	if session.UserID != user.ID {
		t.Fatalf("expected session for user %s, got %s", user.ID, session.UserID)
	}
}

func TestAuthenticateAfterLogout(t *testing.T) {
	deps := newTestService(t)
	deps.createUser(t, "owner@acme.test", true)

	result, err := deps.svc.Login(context.Background(), domain.LoginRequest{
		Email:    "owner@acme.test",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("failed to login: %v", err)
	}

	if err := deps.svc.Logout(context.Background(), result.RawToken); err != nil {
		t.Fatalf("failed to logout: %v", err)
	}

	if _, err := deps.svc.Authenticate(context.Background(), result.RawToken); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestAuthenticateExpiredSession(t *testing.T) {
	deps := newTestService(t)
	deps.createUser(t, "owner@acme.test", true)

	result, err := deps.svc.Login(context.Background(), domain.LoginRequest{
		Email:    "owner@acme.test",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("failed to login: %v", err)
	}

	deps.clock.Advance(31 * 24 * time.Hour)

	if _, err := deps.svc.Authenticate(context.Background(), result.RawToken); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestExchangeConsumesTokenPair(t *testing.T) {
	deps := newTestService(t)
	user := deps.createUser(t, "invitee@acme.test", false)

	pair, err := deps.svc.IssueLoginTokens(context.Background(), user.ID, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue tokens: %v", err)
	}

	result, err := deps.svc.EstablishFromRedirect(context.Background(), domain.ExchangeRequest{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	if err != nil {
		t.Fatalf("failed to exchange: %v", err)
	}

	session, err := deps.svc.Authenticate(context.Background(), result.RawToken)
	if err != nil {
		t.Fatalf("failed to authenticate exchanged session: %v", err)
	}
	if session.UserID != user.ID {
		t.Fatalf("expected session for user %s, got %s", user.ID, session.UserID)
	}

	// Opening the emailed link proves address ownership.
	fresh, err := deps.svc.UserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if !fresh.EmailConfirmed() {
		t.Fatal("expected exchange to confirm the email")
	}

	_, err = deps.svc.EstablishFromRedirect(context.Background(), domain.ExchangeRequest{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	if !errors.Is(err, domain.ErrSessionExchangeFailed) {
		t.Fatalf("expected second exchange to fail, got %v", err)
	}
}

func TestExchangeMismatchedRefreshToken(t *testing.T) {
	deps := newTestService(t)
	user := deps.createUser(t, "invitee@acme.test", false)

	pair, err := deps.svc.IssueLoginTokens(context.Background(), user.ID, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue tokens: %v", err)
	}

	_, err = deps.svc.EstablishFromRedirect(context.Background(), domain.ExchangeRequest{
		AccessToken:  pair.AccessToken,
		RefreshToken: "not-the-refresh-token",
	})
	if !errors.Is(err, domain.ErrSessionExchangeFailed) {
		t.Fatalf("expected ErrSessionExchangeFailed, got %v", err)
	}
}

func TestExchangeExpiredTokenPair(t *testing.T) {
	deps := newTestService(t)
	user := deps.createUser(t, "invitee@acme.test", false)

	pair, err := deps.svc.IssueLoginTokens(context.Background(), user.ID, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue tokens: %v", err)
	}

	deps.clock.Advance(2 * time.Hour)

	_, err = deps.svc.EstablishFromRedirect(context.Background(), domain.ExchangeRequest{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	if !errors.Is(err, domain.ErrSessionExchangeFailed) {
		t.Fatalf("expected ErrSessionExchangeFailed, got %v", err)
	}
}
