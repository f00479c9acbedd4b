package email

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no SMTP transport is configured. Callers
// must treat it as a real failure, never as a delivered message.
var ErrNotConfigured = errors.New("email provider not configured")

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

// NotConfiguredProvider rejects every send so a missing SMTP setup is
// observable rather than silently swallowed.
type NotConfiguredProvider struct{}

func (p *NotConfiguredProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return ErrNotConfigured
}
