package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	keyLoginEmail = "auth:login:email:%s"
	keyLoginIP    = "auth:login:ip:%s"
	keyJoinLock   = "join:accept:%s"

	loginEmailRate  = 0.2
	loginEmailBurst = 5
	loginIPRate     = 1.0
	loginIPBurst    = 20

	joinLockTTL = 10 * time.Second
)

// LoginLimiter throttles credential checks per email and per client IP.
// It also fences invite acceptance so two requests carrying the same
// token do not race past the conditional update at once.
//
// A nil limiter allows everything, so deployments without redis keep
// working unchanged.
type LoginLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker
}

func NewLoginLimiter(client *redis.Client) *LoginLimiter {
	if client == nil {
		return nil
	}
	return &LoginLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
	}
}

func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *LoginLimiter) AllowEmail(ctx context.Context, email string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	key := fmt.Sprintf(keyLoginEmail, strings.ToLower(strings.TrimSpace(email)))
	res, err := l.bucket.Allow(ctx, key, loginEmailRate, loginEmailBurst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (l *LoginLimiter) AllowIP(ctx context.Context, ip string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	key := fmt.Sprintf(keyLoginIP, strings.TrimSpace(ip))
	res, err := l.bucket.Allow(ctx, key, loginIPRate, loginIPBurst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (l *LoginLimiter) TryLockJoin(ctx context.Context, token string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keyJoinLock, token), joinLockTTL)
}

func (l *LoginLimiter) ReleaseJoin(ctx context.Context, token, lockToken string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keyJoinLock, token), lockToken)
}
