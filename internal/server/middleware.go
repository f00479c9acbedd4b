package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	authdomain "github.com/smallbiznis/bizops/internal/auth/domain"
	organizationdomain "github.com/smallbiznis/bizops/internal/organization/domain"
)

const (
	contextUserIDKey  = "user_id"
	contextSessionKey = "session"
)

func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
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

		c.Set(contextUserIDKey, session.UserID.String())
		c.Set(contextSessionKey, session)
		c.Next()
	}
}

// RequireOrgRole gates a route on the caller's membership role in the
// organization named by the :id path parameter.
func (s *Server) RequireOrgRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.userIDFromSession(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		orgID, err := orgIDParam(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		role, err := s.organizationSvc.RoleOf(c.Request.Context(), orgID, userID)
		if err != nil {
			if errors.Is(err, organizationdomain.ErrNotMember) {
				AbortWithError(c, ErrForbidden)
				return
			}
			AbortWithError(c, err)
			return
		}

		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

func (s *Server) userIDFromSession(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.GetString(contextUserIDKey))
	if raw == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (s *Server) sessionFromContext(c *gin.Context) (*authdomain.Session, bool) {
	value, ok := c.Get(contextSessionKey)
	if !ok {
		return nil, false
	}
	session, ok := value.(*authdomain.Session)
	if !ok || session == nil {
		return nil, false
	}
	return session, true
}

func orgIDParam(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param("id"))
	if raw == "" {
		return 0, newValidationError("org_id", "invalid_org_id", "invalid org id")
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError("org_id", "invalid_org_id", "invalid org id")
	}
	return id, nil
}
