package client

import (
	"context"

	"github.com/rs/zerolog"
)

// Mailer is the narrow seam to the email delivery collaborator. Actual
// delivery lives outside this service.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, resetURL string) error
}

// LogMailer logs instead of sending; the default when no delivery backend
// is configured.
type LogMailer struct {
	Log zerolog.Logger
}

func (m LogMailer) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	m.Log.Info().Str("email", email).Str("reset_url", resetURL).
		Msg("password reset requested (mail delivery not configured)")
	return nil
}
