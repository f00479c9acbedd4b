package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	FindOne(ctx context.Context, user User) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	UpdateLastSeen(ctx context.Context, sessionID snowflake.ID, lastSeen time.Time) error
	RevokeSession(ctx context.Context, sessionID snowflake.ID, revokedAt time.Time) error
}

type LoginTokenRepository interface {
	CreateLoginToken(ctx context.Context, token *LoginToken) error
	GetLoginTokenByAccessHash(ctx context.Context, accessHash string) (*LoginToken, error)
	// ConsumeLoginToken flips consumed_at only when the token is still
	// unconsumed; it returns ErrSessionExchangeFailed when another exchange
	// won the race.
	ConsumeLoginToken(ctx context.Context, id snowflake.ID, consumedAt time.Time) error
}
