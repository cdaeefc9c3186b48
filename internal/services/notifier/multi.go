package notifier

import (
	"context"

	"go.uber.org/multierr"

	"github.com/NordCoder/pingboard/internal/domain/notification"
)

var _ notification.Sink = Multi(nil)

// Multi delivers to every child that granted permission.
type Multi []notification.Sink

// NewMulti drops nil sinks. A typed nil *Slack is kept and reports Unsupported.
func NewMulti(sinks ...notification.Sink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// RequestPermission is granted when at least one child grants it. Denied
// wins over unsupported so the user sees the refusal.
func (m Multi) RequestPermission(ctx context.Context) notification.Permission {
	res := notification.Unsupported
	for _, s := range m {
		switch s.RequestPermission(ctx) {
		case notification.Granted:
			return notification.Granted
		case notification.Denied:
			res = notification.Denied
		}
	}
	return res
}

func (m Multi) Notify(ctx context.Context, title, body string) error {
	var errs error
	for _, s := range m {
		if s.RequestPermission(ctx) != notification.Granted {
			continue
		}
		errs = multierr.Append(errs, s.Notify(ctx, title, body))
	}
	return errs
}
