package service

import (
	"context"
	"log/slog"

	"photofeed/internal/observability"
)

// Mailer delivers transactional email (confirmation and recovery links).
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes outgoing mail to the structured log instead of sending it.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	observability.Logger.InfoContext(ctx, "outgoing email",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}
