package notifier

import (
	"context"

	"go.uber.org/multierr"

	"github.com/NordCoder/pingboard/internal/domain/notification"
)

// Email fans one alert out to a fixed recipient list.
type Email struct {
	sender notification.EmailSender
	to     []string
}

func NewEmail(sender notification.EmailSender, to []string) *Email {
	return &Email{sender: sender, to: append([]string(nil), to...)}
}

func (e *Email) RequestPermission(context.Context) notification.Permission {
	if e.sender == nil || len(e.to) == 0 {
		return notification.Unsupported
	}
	return notification.Granted
}

func (e *Email) Notify(ctx context.Context, title, body string) error {
	var errs error
	for _, to := range e.to {
		errs = multierr.Append(errs, e.sender.Send(ctx, to, title, body))
	}
	return errs
}
