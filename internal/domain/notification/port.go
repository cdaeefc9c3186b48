package notification

import "context"

// Sink delivers transition alerts to the user.
type Sink interface {
	RequestPermission(ctx context.Context) Permission
	Notify(ctx context.Context, title, body string) error
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
