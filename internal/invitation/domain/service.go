package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvalidReason classifies why a token failed validation.
type InvalidReason string

const (
	ReasonNotFound      InvalidReason = "token_not_found"
	ReasonEmailMismatch InvalidReason = "token_email_mismatch"
	ReasonAlreadyUsed   InvalidReason = "token_already_used"
	ReasonExpired       InvalidReason = "token_expired"
	ReasonLookupFailed  InvalidReason = "lookup_failed"
)

// Validation is the read-only pre-check result shown to a prospective joiner.
type Validation struct {
	Valid   bool          `json:"valid"`
	Reason  InvalidReason `json:"reason,omitempty"`
	OrgID   string        `json:"organization_id,omitempty"`
	OrgName string        `json:"organization_name,omitempty"`
	Role    string        `json:"role,omitempty"`
}

// AcceptResult reports a successful acceptance.
type AcceptResult struct {
	OrgID string `json:"organization_id"`
	Role  string `json:"role"`
}

type InviteRequest struct {
	OrgID     snowflake.ID
	Email     string
	Role      string
	InvitedBy snowflake.ID
	TTL       time.Duration
}

// Invite pairs a created invitation with its raw join token; the token is
// only surfaced at creation, for delivery inside the join link.
type Invite struct {
	Invitation Invitation `json:"invitation"`
	Token      string     `json:"token"`
}

type Service interface {
	// Validate is read-only and never fails the caller: any lookup error is
	// reported as an invalid result with a generic reason.
	Validate(ctx context.Context, token, email string) Validation

	// Accept atomically consumes a pending, unexpired token for userID,
	// attaching the user to the organization with the invited role. The
	// at-most-once guarantee rests on a conditional update inside a single
	// transaction; the race loser observes ErrTokenAlreadyUsed.
	Accept(ctx context.Context, userID snowflake.ID, userEmail, token string) (*AcceptResult, error)

	Invite(ctx context.Context, req InviteRequest) (*Invite, error)
	BatchInvite(ctx context.Context, reqs []InviteRequest) ([]Invite, error)
	ListByOrg(ctx context.Context, orgID snowflake.ID) ([]Invitation, error)
	Revoke(ctx context.Context, orgID, inviteID snowflake.ID) error
}
