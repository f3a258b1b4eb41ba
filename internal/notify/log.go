package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogMailer logs instead of sending. Used in dev when SMTP_HOST is unset.
type LogMailer struct {
	logger zerolog.Logger
}

func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendEmail(_ context.Context, to, subject, body string) error {
	m.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("email suppressed (log mailer)")
	return nil
}
