package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/smallbiznis/bizops/internal/auth/domain"
	onboardingdomain "github.com/smallbiznis/bizops/internal/onboarding/domain"
	profiledomain "github.com/smallbiznis/bizops/internal/profile/domain"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Session     *authdomain.SessionView      `json:"session"`
	Destination onboardingdomain.Destination `json:"destination"`
}

func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	email := strings.TrimSpace(req.Email)
	if !s.allowLoginAttempt(c, email) {
		AbortWithError(c, ErrTooManyRequests)
		return
	}

	// A stale cookie from a previous account must not leak into the new
	// session.
	if token, ok := s.sessions.ReadToken(c); ok {
		if err := s.authsvc.Logout(c.Request.Context(), token); err != nil {
			s.log.Debug("stale session logout failed", zap.Error(err))
		}
		s.sessions.Clear(c)
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)

	// Every authentication event converges the profile; a login only
	// succeeds for a confirmed address. Sync failures never undo the login.
	if err := s.profileSvc.Sync(c.Request.Context(), profiledomain.SyncInput{
		UserID:         result.UserID,
		Email:          result.Email,
		EmailConfirmed: true,
	}); err != nil {
		s.log.Warn("profile sync failed",
			zap.String("user_id", result.UserID.String()),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, loginResponse{
		Session:     result.Session,
		Destination: s.destinationFor(c, result.UserID),
	})
}

func (s *Server) allowLoginAttempt(c *gin.Context, email string) bool {
	if !s.loginLimiter.Enabled() {
		return true
	}

	ctx := c.Request.Context()
	if ok, err := s.loginLimiter.AllowIP(ctx, c.ClientIP()); err != nil {
		s.log.Warn("login rate limit check failed", zap.Error(err))
	} else if !ok {
		return false
	}
	if ok, err := s.loginLimiter.AllowEmail(ctx, email); err != nil {
		s.log.Warn("login rate limit check failed", zap.Error(err))
	} else if !ok {
		return false
	}
	return true
}

func (s *Server) Logout(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.authsvc.Logout(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) Me(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	session, err := s.authsvc.Authenticate(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var user authdomain.User
	if err := s.db.WithContext(c.Request.Context()).First(&user, "id = ?", session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		AbortWithError(c, err)
		return
	}

	metadata := map[string]any{
		"user_id":         user.ID.String(),
		"external_id":     user.ExternalID,
		"provider":        user.Provider,
		"display_name":    user.DisplayName,
		"email":           user.Email,
		"email_confirmed": user.EmailConfirmed(),
	}

	profile, err := s.profileSvc.Get(c.Request.Context(), user.ID)
	if err == nil {
		if profile.OrgID != nil {
			metadata["org_id"] = profile.OrgID.String()
			metadata["role"] = profile.Role
		}
		metadata["has_seen_welcome"] = profile.HasSeenWelcome
	} else if !errors.Is(err, profiledomain.ErrProfileNotFound) {
		AbortWithError(c, err)
		return
	}
	metadata["destination"] = onboardingdomain.Route(profile)

	c.JSON(http.StatusOK, &authdomain.SessionView{Metadata: metadata})
}

// Callback exchanges the one-time token pair carried on a magic-link
// redirect for a browser session, optionally consuming an invite token in
// the same step.
func (s *Server) Callback(c *gin.Context) {
	var req onboardingdomain.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.UserAgent = c.Request.UserAgent()
	req.IPAddress = c.ClientIP()

	result, err := s.onboardingsvc.Join(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)

	c.JSON(http.StatusOK, gin.H{
		"session":         result.Session,
		"destination":     result.Destination,
		"organization_id": result.OrgID,
		"role":            result.Role,
		"invite_error":    result.InviteError,
	})
}

func (s *Server) WelcomeSeen(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.profileSvc.MarkWelcomeSeen(c.Request.Context(), userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListUserOrgs(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgs, err := s.organizationSvc.ListOrganizationsByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orgs": orgs})
}

func (s *Server) destinationFor(c *gin.Context, userID snowflake.ID) onboardingdomain.Destination {
	profile, err := s.profileSvc.Get(c.Request.Context(), userID)
	if err != nil {
		return onboardingdomain.Route(nil)
	}
	return onboardingdomain.Route(profile)
}
