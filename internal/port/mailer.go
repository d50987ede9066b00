package port

import "context"

type Mailer interface {
	// Send delivers one HTML message to the given address
	Send(ctx context.Context, to, subject, htmlBody string) error
}
