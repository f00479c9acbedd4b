package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	onboardingdomain "github.com/smallbiznis/bizops/internal/onboarding/domain"
)

type SignupRequest struct {
	OrgName  string `json:"org_name"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	InviteToken string `json:"invite_token"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func (s *Server) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.onboardingsvc.Signup(c.Request.Context(), onboardingdomain.SignupRequest{
		OrgName:   req.OrgName,
		FullName:  req.FullName,
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)

	c.JSON(http.StatusOK, gin.H{
		"session":         result.Session,
		"organization_id": result.OrgID,
		"user_id":         result.UserID,
	})
}

// Register provisions an account straight from an invitation link.
func (s *Server) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.onboardingsvc.Register(c.Request.Context(), onboardingdomain.RegisterRequest{
		InviteToken: req.InviteToken,
		FullName:    req.FullName,
		Email:       req.Email,
		Password:    req.Password,
		UserAgent:   c.Request.UserAgent(),
		IPAddress:   c.ClientIP(),
	})
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
