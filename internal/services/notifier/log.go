package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/NordCoder/pingboard/internal/domain/notification"
)

// Log writes alerts to the structured log. It is always permitted.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log.With(zap.String("component", "notifier.log"))}
}

func (l *Log) RequestPermission(context.Context) notification.Permission {
	return notification.Granted
}

func (l *Log) Notify(_ context.Context, title, body string) error {
	l.log.Info(title, zap.String("body", body))
	return nil
}
