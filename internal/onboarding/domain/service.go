package domain

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/smallbiznis/bizops/internal/auth/domain"
)

type Service interface {
	// Join exchanges a magic-link redirect for a session, synchronizes the
	// profile, consumes an invite token when one is present, and decides
	// where the client should land next.
	Join(ctx context.Context, req JoinRequest) (*JoinResult, error)

	Signup(ctx context.Context, req SignupRequest) (*SignupResult, error)

	// Register provisions an account from an invitation link. The supplied
	// email must match the invited address.
	Register(ctx context.Context, req RegisterRequest) (*JoinResult, error)
}

// Destination tells the client which screen follows a completed login.
type Destination string

const (
	DestinationJoinOrganization Destination = "join_organization"
	DestinationEmployeeWelcome  Destination = "employee_welcome"
	DestinationDashboard        Destination = "dashboard"
)

type JoinRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	InviteToken  string `json:"invite_token,omitempty"`
	UserAgent    string `json:"-"`
	IPAddress    string `json:"-"`
}

type JoinResult struct {
	Session   *authdomain.SessionView
	RawToken  string
	ExpiresAt time.Time
	UserID    string

	Destination Destination
	OrgID       string
	Role        string

	// InviteError carries the classification of a failed acceptance. The
	// session itself is still established; only the join step failed.
	InviteError string
}

type SignupRequest struct {
	OrgName   string `json:"org_name"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

type SignupResult struct {
	Session   *authdomain.SessionView
	RawToken  string
	ExpiresAt time.Time
	OrgID     string
	UserID    string
}

type RegisterRequest struct {
	InviteToken string `json:"invite_token"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	UserAgent   string `json:"-"`
	IPAddress   string `json:"-"`
}

var ErrInvalidRequest = errors.New("invalid onboarding request")
