package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	UserByID(ctx context.Context, id snowflake.ID) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	IssueLoginTokens(ctx context.Context, userID snowflake.ID, ttl time.Duration) (*LoginTokenPair, error)
	EstablishFromRedirect(ctx context.Context, req ExchangeRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	ConfirmEmail(ctx context.Context, userID snowflake.ID) error
}

type CreateUserRequest struct {
	Email       string
	Password    string
	DisplayName string
	// Confirmed marks the email as already verified, e.g. when the account
	// is provisioned from an invitation sent to that address.
	Confirmed bool
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// ExchangeRequest carries the token pair from a magic-link redirect.
type ExchangeRequest struct {
	AccessToken  string
	RefreshToken string
	UserAgent    string
	IPAddress    string
}

type LoginResult struct {
	Session   *SessionView
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
	UserID    snowflake.ID
	Email     string
}

// LoginTokenPair is the raw one-time pair embedded in a magic-link URL.
// Raw values are never stored; only their hashes are.
type LoginTokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
