package onboarding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/smallbiznis/bizops/internal/auth/domain"
	authrepo "github.com/smallbiznis/bizops/internal/auth/repository"
	authservice "github.com/smallbiznis/bizops/internal/auth/service"
	"github.com/smallbiznis/bizops/internal/clock"
	"github.com/smallbiznis/bizops/internal/config"
	invitedomain "github.com/smallbiznis/bizops/internal/invitation/domain"
	inviterepo "github.com/smallbiznis/bizops/internal/invitation/repository"
	inviteservice "github.com/smallbiznis/bizops/internal/invitation/service"
	"github.com/smallbiznis/bizops/internal/onboarding/domain"
	orgdomain "github.com/smallbiznis/bizops/internal/organization/domain"
	orgrepo "github.com/smallbiznis/bizops/internal/organization/repository"
	orgservice "github.com/smallbiznis/bizops/internal/organization/service"
	profiledomain "github.com/smallbiznis/bizops/internal/profile/domain"
	profilerepo "github.com/smallbiznis/bizops/internal/profile/repository"
	profileservice "github.com/smallbiznis/bizops/internal/profile/service"
	"github.com/smallbiznis/bizops/pkg/db"
)

type testEnv struct {
	svc        domain.Service
	authsvc    authdomain.Service
	invitesvc  invitedomain.Service
	orgsvc     orgdomain.Service
	profilesvc profiledomain.Service
	db         *gorm.DB
	clock      *clock.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&authdomain.LoginToken{},
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&invitedomain.Invitation{},
		&profiledomain.Profile{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{InviteTTLHours: 72}

	users, sessions, tokens := authrepo.New(dbConn)
	authsvc := authservice.New(log, users, sessions, tokens, node, fake)

	orgs := orgrepo.NewRepository(dbConn)
	orgsvc := orgservice.NewService(dbConn, orgs, node, fake)

	profiles := profilerepo.New(dbConn)
	profilesvc := profileservice.New(log, profiles, fake)

	invites := inviterepo.New(dbConn)
	invitesvc := inviteservice.New(log, dbConn, invites, orgs, profiles, node, fake, cfg)

	svc := NewService(log, authsvc, orgsvc, profilesvc, invitesvc, nil)

	return &testEnv{
		svc:        svc,
		authsvc:    authsvc,
		invitesvc:  invitesvc,
		orgsvc:     orgsvc,
		profilesvc: profilesvc,
		db:         dbConn,
		clock:      fake,
	}
}

// setupOrgWithOwner signs up an owner and returns their user id and org id.
func (e *testEnv) setupOrgWithOwner(t *testing.T) (snowflake.ID, snowflake.ID) {
	t.Helper()

	result, err := e.svc.Signup(context.Background(), domain.SignupRequest{
		OrgName:  "Acme",
		FullName: "Ann Owner",
		Email:    "ann@acme.test",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("failed to sign up owner: %v", err)
	}

	userID, err := snowflake.ParseString(result.UserID)
	if err != nil {
		t.Fatalf("failed to parse user id %q: %v", result.UserID, err)
	}
	orgID, err := snowflake.ParseString(result.OrgID)
	if err != nil {
		t.Fatalf("failed to parse org id %q: %v", result.OrgID, err)
	}
	return userID, orgID
}

// issueMagicLink provisions an unconfirmed account and returns the token
// pair that its emailed link would carry.
func (e *testEnv) issueMagicLink(t *testing.T, email string) (*authdomain.User, *authdomain.LoginTokenPair) {
	t.Helper()

	user, err := e.authsvc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    email,
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	pair, err := e.authsvc.IssueLoginTokens(context.Background(), user.ID, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue login tokens: %v", err)
	}
	return user, pair
}

func TestSignupProvisionsOrganization(t *testing.T) {
	env := newTestEnv(t)
	userID, orgID := env.setupOrgWithOwner(t)

	session, err := env.authsvc.Authenticate(context.Background(), "")
	if err == nil {
		t.Fatalf("expected empty token to fail, got session %v", session)
	}

	role, err := env.orgsvc.RoleOf(context.Background(), orgID, userID)
	if err != nil {
		t.Fatalf("failed to resolve role: %v", err)
	}
	if role != orgdomain.RoleOwner {
		t.Fatalf("expected owner role, got %q", role)
	}

	profile, err := env.profilesvc.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to load profile: %v", err)
	}
	if !profile.EmailVerified {
		t.Fatal("expected signup profile to be verified")
	}
}

func TestSignupSessionIsUsable(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.svc.Signup(context.Background(), domain.SignupRequest{
		OrgName:  "Acme",
		FullName: "Ann Owner",
		Email:    "ann@acme.test",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("failed to sign up: %v", err)
	}

	if _, err := env.authsvc.Authenticate(context.Background(), result.RawToken); err != nil {
		t.Fatalf("failed to authenticate signup session: %v", err)
	}
}

func TestSignupRequiresOrgOrFullName(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Signup(context.Background(), domain.SignupRequest{
		Email:    "ann@acme.test",
		Password: "correct horse battery",
	})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestJoinWithoutInvite(t *testing.T) {
	env := newTestEnv(t)
	user, pair := env.issueMagicLink(t, "bob@acme.test")

	result, err := env.svc.Join(context.Background(), domain.JoinRequest{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	if err != nil {
		t.Fatalf("failed to join: %v", err)
	}

	if result.Destination != domain.DestinationJoinOrganization {
		t.Fatalf("expected join_organization, got %q", result.Destination)
	}
	if result.InviteError != "" {
		t.Fatalf("expected no invite error, got %q", result.InviteError)
	}

	// Exchanging the emailed pair confirms the address.
	fresh, err := env.authsvc.UserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if !fresh.EmailConfirmed() {
		t.Fatal("expected join to confirm the email")
	}
}

func TestJoinConsumesInvite(t *testing.T) {
	env := newTestEnv(t)
	ownerID, orgID := env.setupOrgWithOwner(t)

	invite, err := env.invitesvc.Invite(context.Background(), invitedomain.InviteRequest{
		OrgID:     orgID,
		Email:     "bob@acme.test",
		Role:      orgdomain.RoleMember,
		InvitedBy: ownerID,
	})
	if err != nil {
		t.Fatalf("failed to create invite: %v", err)
	}

	user, pair := env.issueMagicLink(t, "bob@acme.test")

	result, err := env.svc.Join(context.Background(), domain.JoinRequest{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		InviteToken:  invite.Token,
	})
	if err != nil {
		t.Fatalf("failed to join: %v", err)
	}

	if result.InviteError != "" {
		t.Fatalf("expected acceptance to succeed, got %q", result.InviteError)
	}
	if result.OrgID != orgID.String() {
		t.Fatalf("expected org %s, got %q", orgID, result.OrgID)
	}
	if result.Role != orgdomain.RoleMember {
		t.Fatalf("expected member role, got %q", result.Role)
	}
	if result.Destination != domain.DestinationEmployeeWelcome {
		t.Fatalf("expected employee_welcome, got %q", result.Destination)
	}

	role, err := env.orgsvc.RoleOf(context.Background(), orgID, user.ID)
	if err != nil {
		t.Fatalf("failed to resolve role: %v", err)
	}
	if role != orgdomain.RoleMember {
		t.Fatalf("expected membership role member, got %q", role)
	}

	profile, err := env.profilesvc.Get(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("failed to load profile: %v", err)
	}
	if profile.OrgID == nil || *profile.OrgID != orgID {
		t.Fatalf("expected profile org %s, got %v", orgID, profile.OrgID)
	}
}

func TestJoinKeepsSessionOnInviteFailure(t *testing.T) {
	env := newTestEnv(t)
	_, pair := env.issueMagicLink(t, "bob@acme.test")

	result, err := env.svc.Join(context.Background(), domain.JoinRequest{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		InviteToken:  "no-such-token",
	})
	if err != nil {
		t.Fatalf("expected session despite bad invite, got %v", err)
	}

	if result.InviteError != string(invitedomain.ReasonNotFound) {
		t.Fatalf("expected %q, got %q", invitedomain.ReasonNotFound, result.InviteError)
	}
	if result.Destination != domain.DestinationJoinOrganization {
		t.Fatalf("expected join_organization, got %q", result.Destination)
	}
	if _, err := env.authsvc.Authenticate(context.Background(), result.RawToken); err != nil {
		t.Fatalf("expected the session to survive, got %v", err)
	}
}

func TestJoinWithForeignInvite(t *testing.T) {
	env := newTestEnv(t)
	ownerID, orgID := env.setupOrgWithOwner(t)

	invite, err := env.invitesvc.Invite(context.Background(), invitedomain.InviteRequest{
		OrgID:     orgID,
		Email:     "carol@acme.test",
		Role:      orgdomain.RoleMember,
		InvitedBy: ownerID,
	})
	if err != nil {
		t.Fatalf("failed to create invite: %v", err)
	}

	_, pair := env.issueMagicLink(t, "bob@acme.test")

	result, err := env.svc.Join(context.Background(), domain.JoinRequest{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		InviteToken:  invite.Token,
	})
	if err != nil {
		t.Fatalf("failed to join: %v", err)
	}
	if result.InviteError != string(invitedomain.ReasonEmailMismatch) {
		t.Fatalf("expected %q, got %q", invitedomain.ReasonEmailMismatch, result.InviteError)
	}
	if result.OrgID != "" {
		t.Fatalf("expected no org attachment, got %q", result.OrgID)
	}
}

func TestRegisterWithInvite(t *testing.T) {
	env := newTestEnv(t)
	ownerID, orgID := env.setupOrgWithOwner(t)

	invite, err := env.invitesvc.Invite(context.Background(), invitedomain.InviteRequest{
		OrgID:     orgID,
		Email:     "bob@acme.test",
		Role:      orgdomain.RoleMember,
		InvitedBy: ownerID,
	})
	if err != nil {
		t.Fatalf("failed to create invite: %v", err)
	}

	result, err := env.svc.Register(context.Background(), domain.RegisterRequest{
		InviteToken: invite.Token,
		FullName:    "Bob Builder",
		Email:       "bob@acme.test",
		Password:    "correct horse battery",
	})
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	if result.InviteError != "" {
		t.Fatalf("expected acceptance to succeed, got %q", result.InviteError)
	}
	if result.OrgID != orgID.String() {
		t.Fatalf("expected org %s, got %q", orgID, result.OrgID)
	}
	if result.Destination != domain.DestinationEmployeeWelcome {
		t.Fatalf("expected employee_welcome, got %q", result.Destination)
	}
	if _, err := env.authsvc.Authenticate(context.Background(), result.RawToken); err != nil {
		t.Fatalf("failed to authenticate registered session: %v", err)
	}
}

func TestRegisterEmailMismatch(t *testing.T) {
	env := newTestEnv(t)
	ownerID, orgID := env.setupOrgWithOwner(t)

	invite, err := env.invitesvc.Invite(context.Background(), invitedomain.InviteRequest{
		OrgID:     orgID,
		Email:     "bob@acme.test",
		Role:      orgdomain.RoleMember,
		InvitedBy: ownerID,
	})
	if err != nil {
		t.Fatalf("failed to create invite: %v", err)
	}

	_, err = env.svc.Register(context.Background(), domain.RegisterRequest{
		InviteToken: invite.Token,
		FullName:    "Eve Intruder",
		Email:       "eve@other.test",
		Password:    "correct horse battery",
	})
	if !errors.Is(err, invitedomain.ErrTokenEmailMismatch) {
		t.Fatalf("expected ErrTokenEmailMismatch, got %v", err)
	}
}

func TestRegisterExpiredInvite(t *testing.T) {
	env := newTestEnv(t)
	ownerID, orgID := env.setupOrgWithOwner(t)

	invite, err := env.invitesvc.Invite(context.Background(), invitedomain.InviteRequest{
		OrgID:     orgID,
		Email:     "bob@acme.test",
		Role:      orgdomain.RoleMember,
		InvitedBy: ownerID,
	})
	if err != nil {
		t.Fatalf("failed to create invite: %v", err)
	}

	env.clock.Advance(73 * time.Hour)

	_, err = env.svc.Register(context.Background(), domain.RegisterRequest{
		InviteToken: invite.Token,
		FullName:    "Bob Builder",
		Email:       "bob@acme.test",
		Password:    "correct horse battery",
	})
	if !errors.Is(err, invitedomain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}
