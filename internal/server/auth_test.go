package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authdomain "github.com/smallbiznis/bizops/internal/auth/domain"
	"github.com/smallbiznis/bizops/internal/auth/session"
	"github.com/smallbiznis/bizops/internal/config"
	invitedomain "github.com/smallbiznis/bizops/internal/invitation/domain"
	onboardingdomain "github.com/smallbiznis/bizops/internal/onboarding/domain"
	profiledomain "github.com/smallbiznis/bizops/internal/profile/domain"
)

type fakeAuthService struct {
	loginErr    error
	loginCalls  int
	logoutCalls int
	issueCalls  int
	issueUserID snowflake.ID
}

func (f *fakeAuthService) CreateUser(ctx context.Context, req authdomain.CreateUserRequest) (*authdomain.User, error) {
	_ = ctx
	return &authdomain.User{ID: snowflake.ID(200), Email: req.Email}, nil
}

func (f *fakeAuthService) UserByID(ctx context.Context, id snowflake.ID) (*authdomain.User, error) {
	_ = ctx
	return &authdomain.User{ID: id}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	f.loginCalls++
	_ = ctx
	_ = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &authdomain.LoginResult{
		Session: &authdomain.SessionView{
			Metadata: map[string]any{"user_id": "200"},
		},
		RawToken:  "session-token",
		ExpiresAt: time.Now().Add(time.Hour),
		SessionID: snowflake.ID(300),
		UserID:    snowflake.ID(200),
	}, nil
}

func (f *fakeAuthService) IssueLoginTokens(ctx context.Context, userID snowflake.ID, ttl time.Duration) (*authdomain.LoginTokenPair, error) {
	f.issueCalls++
	f.issueUserID = userID
	_ = ctx
	return &authdomain.LoginTokenPair{
		AccessToken:  "magic-access",
		RefreshToken: "magic-refresh",
		ExpiresAt:    time.Now().Add(ttl),
	}, nil
}

func (f *fakeAuthService) EstablishFromRedirect(ctx context.Context, req authdomain.ExchangeRequest) (*authdomain.LoginResult, error) {
	_ = ctx
	_ = req
	return nil, authdomain.ErrSessionExchangeFailed
}

func (f *fakeAuthService) Logout(ctx context.Context, rawToken string) error {
	f.logoutCalls++
	_ = ctx
	_ = rawToken
	return nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, rawToken string) (*authdomain.Session, error) {
	_ = ctx
	_ = rawToken
	return nil, authdomain.ErrInvalidSession
}

func (f *fakeAuthService) ConfirmEmail(ctx context.Context, userID snowflake.ID) error {
	_ = ctx
	_ = userID
	return nil
}

type fakeProfileService struct {
	profile   *profiledomain.Profile
	syncCalls int
	lastSync  profiledomain.SyncInput
	syncErr   error
}

func (f *fakeProfileService) Sync(ctx context.Context, in profiledomain.SyncInput) error {
	f.syncCalls++
	f.lastSync = in
	_ = ctx
	return f.syncErr
}

func (f *fakeProfileService) Get(ctx context.Context, userID snowflake.ID) (*profiledomain.Profile, error) {
	_ = ctx
	_ = userID
	if f.profile == nil {
		return nil, profiledomain.ErrProfileNotFound
	}
	return f.profile, nil
}

func (f *fakeProfileService) MarkWelcomeSeen(ctx context.Context, userID snowflake.ID) error {
	_ = ctx
	_ = userID
	return nil
}

type fakeOnboardingService struct {
	joinResult *onboardingdomain.JoinResult
	joinErr    error
}

func (f *fakeOnboardingService) Join(ctx context.Context, req onboardingdomain.JoinRequest) (*onboardingdomain.JoinResult, error) {
	_ = ctx
	_ = req
	return f.joinResult, f.joinErr
}

func (f *fakeOnboardingService) Signup(ctx context.Context, req onboardingdomain.SignupRequest) (*onboardingdomain.SignupResult, error) {
	_ = ctx
	_ = req
	return nil, nil
}

func (f *fakeOnboardingService) Register(ctx context.Context, req onboardingdomain.RegisterRequest) (*onboardingdomain.JoinResult, error) {
	_ = ctx
	_ = req
	return f.joinResult, f.joinErr
}

func newLoginRouter(srv *Server) *gin.Engine {
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/auth/login", srv.Login)
	return router
}

func TestLoginHandlerSetsSessionCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)

	authSvc := &fakeAuthService{}
	srv := &Server{
		log:        zap.NewNop(),
		authsvc:    authSvc,
		profileSvc: &fakeProfileService{},
		sessions:   session.NewManager(config.Config{}),
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"ann@acme.test","password":"secret-password"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	newLoginRouter(srv).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if authSvc.loginCalls != 1 {
		t.Fatalf("expected one login call, got %d", authSvc.loginCalls)
	}

	cookie := resp.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, session.DefaultCookieName+"=session-token") {
		t.Fatalf("expected session cookie, got %q", cookie)
	}
	if !strings.Contains(resp.Body.String(), string(onboardingdomain.DestinationJoinOrganization)) {
		t.Fatalf("expected join_organization destination, got %s", resp.Body.String())
	}
}

func TestLoginHandlerSyncsProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)

	profileSvc := &fakeProfileService{}
	srv := &Server{
		log:        zap.NewNop(),
		authsvc:    &fakeAuthService{},
		profileSvc: profileSvc,
		sessions:   session.NewManager(config.Config{}),
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"ann@acme.test","password":"secret-password"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	newLoginRouter(srv).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if profileSvc.syncCalls != 1 {
		t.Fatalf("expected one profile sync, got %d", profileSvc.syncCalls)
	}
	if profileSvc.lastSync.UserID != snowflake.ID(200) {
		t.Fatalf("expected sync for user 200, got %s", profileSvc.lastSync.UserID)
	}
	if !profileSvc.lastSync.EmailConfirmed {
		t.Fatal("expected sync to report the address confirmed")
	}
}

func TestLoginHandlerSurvivesSyncFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := &Server{
		log:        zap.NewNop(),
		authsvc:    &fakeAuthService{},
		profileSvc: &fakeProfileService{syncErr: errors.New("profiles unavailable")},
		sessions:   session.NewManager(config.Config{}),
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"ann@acme.test","password":"secret-password"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	newLoginRouter(srv).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Header().Get("Set-Cookie"), "session-token") {
		t.Fatal("expected session cookie despite sync failure")
	}
}

func TestLoginHandlerRoutesExistingMember(t *testing.T) {
	gin.SetMode(gin.TestMode)

	orgID := snowflake.ID(100)
	srv := &Server{
		log:     zap.NewNop(),
		authsvc: &fakeAuthService{},
		profileSvc: &fakeProfileService{
			profile: &profiledomain.Profile{OrgID: &orgID, HasSeenWelcome: true},
		},
		sessions: session.NewManager(config.Config{}),
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"ann@acme.test","password":"secret-password"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	newLoginRouter(srv).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), string(onboardingdomain.DestinationDashboard)) {
		t.Fatalf("expected dashboard destination, got %s", resp.Body.String())
	}
}

func TestLoginHandlerUnconfirmedEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := &Server{
		log:        zap.NewNop(),
		authsvc:    &fakeAuthService{loginErr: authdomain.ErrEmailNotConfirmed},
		profileSvc: &fakeProfileService{},
		sessions:   session.NewManager(config.Config{}),
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"ann@acme.test","password":"secret-password"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	newLoginRouter(srv).ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "email_not_confirmed") {
		t.Fatalf("expected email_not_confirmed type, got %s", resp.Body.String())
	}
	if strings.Contains(resp.Header().Get("Set-Cookie"), "session-token") {
		t.Fatal("expected no session cookie on refusal")
	}
}

func TestLoginHandlerInvalidCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := &Server{
		log:        zap.NewNop(),
		authsvc:    &fakeAuthService{loginErr: authdomain.ErrInvalidCredentials},
		profileSvc: &fakeProfileService{},
		sessions:   session.NewManager(config.Config{}),
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"ann@acme.test","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	newLoginRouter(srv).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCallbackHandlerReportsInviteError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := &Server{
		log: zap.NewNop(),
		onboardingsvc: &fakeOnboardingService{
			joinResult: &onboardingdomain.JoinResult{
				RawToken:    "session-token",
				ExpiresAt:   time.Now().Add(time.Hour),
				UserID:      "200",
				Destination: onboardingdomain.DestinationJoinOrganization,
				InviteError: string(invitedomain.ReasonExpired),
			},
		},
		sessions: session.NewManager(config.Config{}),
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/auth/callback", srv.Callback)

	req := httptest.NewRequest(http.MethodPost, "/auth/callback", bytes.NewBufferString(`{"access_token":"at","refresh_token":"rt","invite_token":"it"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Header().Get("Set-Cookie"), session.DefaultCookieName+"=session-token") {
		t.Fatal("expected session cookie despite invite failure")
	}
	if !strings.Contains(resp.Body.String(), string(invitedomain.ReasonExpired)) {
		t.Fatalf("expected invite_error in body, got %s", resp.Body.String())
	}
}

func TestCallbackHandlerExchangeFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := &Server{
		log:           zap.NewNop(),
		onboardingsvc: &fakeOnboardingService{joinErr: authdomain.ErrSessionExchangeFailed},
		sessions:      session.NewManager(config.Config{}),
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	router.POST("/auth/callback", srv.Callback)

	req := httptest.NewRequest(http.MethodPost, "/auth/callback", bytes.NewBufferString(`{"access_token":"at","refresh_token":"rt"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d: %s", resp.Code, resp.Body.String())
	}
}
