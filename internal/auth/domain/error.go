package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrEmailNotConfirmed     = errors.New("email not confirmed")
	ErrSessionExchangeFailed = errors.New("session exchange failed")
	ErrUserNotFound          = errors.New("user not found")
	ErrUserExists            = errors.New("user already exists")
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionExpired        = errors.New("session expired")
	ErrSessionRevoked        = errors.New("session revoked")
	ErrInvalidSession        = errors.New("invalid session")
	ErrNotImplemented        = errors.New("not implemented")
)

// IsEmailNotConfirmed distinguishes unconfirmed-email failures from invalid
// credentials. Prefers the sentinel; falls back to matching the provider
// message so upstream wording changes stay contained to this one function.
func IsEmailNotConfirmed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmailNotConfirmed) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "email not confirmed")
}
