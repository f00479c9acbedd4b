package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type acceptInviteRequest struct {
	Token string `json:"token"`
}

// ValidateInvite is the public pre-check behind the join screen. It never
// fails the request: a bad token is a valid response describing why.
func (s *Server) ValidateInvite(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	email := strings.TrimSpace(c.Query("email"))

	validation := s.invitationSvc.Validate(c.Request.Context(), token, email)
	c.JSON(http.StatusOK, validation)
}

func (s *Server) AcceptInvite(c *gin.Context) {
	session, ok := s.sessionFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req acceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		AbortWithError(c, newValidationError("token", "required", "token is required"))
		return
	}

	result, err := s.invitationSvc.Accept(c.Request.Context(), session.UserID, session.Email, token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
