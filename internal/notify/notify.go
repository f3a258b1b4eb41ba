// Package notify is the outbound email seam. Delivery is always best-effort:
// callers log failures and move on, so a down mail relay can never block a
// state transition.
package notify

import "context"

// Mailer sends a plain-text email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}
