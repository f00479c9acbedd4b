package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/smallbiznis/bizops/internal/auth/domain"
	invitedomain "github.com/smallbiznis/bizops/internal/invitation/domain"
)

type inviteMembersRequest struct {
	Invites []inviteMemberRequest `json:"invites"`
}

type inviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type inviteResponse struct {
	Invitation invitedomain.Invitation `json:"invitation"`
	JoinURL    string                  `json:"join_url"`
}

func (s *Server) InviteOrganizationMembers(c *gin.Context) {
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

	var req inviteMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if len(req.Invites) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	reqs := make([]invitedomain.InviteRequest, 0, len(req.Invites))
	for _, invite := range req.Invites {
		reqs = append(reqs, invitedomain.InviteRequest{
			OrgID:     orgID,
			Email:     invite.Email,
			Role:      invite.Role,
			InvitedBy: userID,
		})
	}

	invites, err := s.invitationSvc.BatchInvite(c.Request.Context(), reqs)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]inviteResponse, 0, len(invites))
	for _, invite := range invites {
		joinURL := s.joinURL(c, invite)
		s.deliverInvite(c, invite, joinURL)
		out = append(out, inviteResponse{
			Invitation: invite.Invitation,
			JoinURL:    joinURL,
		})
	}

	c.JSON(http.StatusOK, gin.H{"invites": out})
}

func (s *Server) ListOrganizationInvites(c *gin.Context) {
	orgID, err := orgIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invites, err := s.invitationSvc.ListByOrg(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invites": invites})
}

func (s *Server) RevokeOrganizationInvite(c *gin.Context) {
	orgID, err := orgIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rawInviteID := c.Param("inviteId")
	inviteID, err := snowflake.ParseString(rawInviteID)
	if err != nil {
		AbortWithError(c, newValidationError("invite_id", "invalid_invite_id", "invalid invite id"))
		return
	}

	if err := s.invitationSvc.Revoke(c.Request.Context(), orgID, inviteID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// joinURL builds the emailed join link. When the invited address already has
// an account, a one-time login token pair is issued alongside the invite so
// opening the link signs the user in through /auth/callback; otherwise the
// link only carries the invite token and the join screen offers registration.
func (s *Server) joinURL(c *gin.Context, invite invitedomain.Invite) string {
	link := fmt.Sprintf("%s/join?token=%s", s.cfg.PublicBaseURL, url.QueryEscape(invite.Token))

	ctx := c.Request.Context()
	var user authdomain.User
	if err := s.db.WithContext(ctx).Where("email = ?", invite.Invitation.Email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("invitee lookup failed",
				zap.String("invite_id", invite.Invitation.ID.String()),
				zap.Error(err),
			)
		}
		return link
	}

	pair, err := s.authsvc.IssueLoginTokens(ctx, user.ID, time.Until(invite.Invitation.ExpiresAt))
	if err != nil {
		s.log.Warn("login token issuance failed",
			zap.String("invite_id", invite.Invitation.ID.String()),
			zap.Error(err),
		)
		return link
	}

	return fmt.Sprintf("%s&access_token=%s&refresh_token=%s",
		link, url.QueryEscape(pair.AccessToken), url.QueryEscape(pair.RefreshToken))
}

// deliverInvite mails the join link. Delivery failures are logged, never
// surfaced: the invite already exists and its link is in the response.
func (s *Server) deliverInvite(c *gin.Context, invite invitedomain.Invite, joinURL string) {
	subject := "You have been invited to join an organization"
	body := fmt.Sprintf(
		`<p>You have been invited to join as %s.</p><p><a href=%q>Accept invitation</a></p>`,
		invite.Invitation.Role, joinURL,
	)
	if err := s.emailProvider.Send(c.Request.Context(), []string{invite.Invitation.Email}, subject, body); err != nil {
		s.log.Warn("invite email delivery failed",
			zap.String("invite_id", invite.Invitation.ID.String()),
			zap.Error(err),
		)
	}
}
