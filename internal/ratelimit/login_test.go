package ratelimit

import (
	"context"
	"testing"
)

func TestNilLimiterAllowsEverything(t *testing.T) {
	var limiter *LoginLimiter

	if limiter.Enabled() {
		t.Fatal("expected nil limiter to be disabled")
	}

	ok, err := limiter.AllowEmail(context.Background(), "ann@acme.test")
	if err != nil || !ok {
		t.Fatalf("expected email allowed, got ok=%v err=%v", ok, err)
	}

	ok, err = limiter.AllowIP(context.Background(), "127.0.0.1")
	if err != nil || !ok {
		t.Fatalf("expected ip allowed, got ok=%v err=%v", ok, err)
	}

	token, ok, err := limiter.TryLockJoin(context.Background(), "invite-token")
	if err != nil || !ok {
		t.Fatalf("expected lock granted, got ok=%v err=%v", ok, err)
	}
	if err := limiter.ReleaseJoin(context.Background(), "invite-token", token); err != nil {
		t.Fatalf("expected release to be a no-op, got %v", err)
	}
}

func TestNewLoginLimiterWithoutRedis(t *testing.T) {
	if limiter := NewLoginLimiter(nil); limiter != nil {
		t.Fatal("expected no limiter without a redis client")
	}
}
