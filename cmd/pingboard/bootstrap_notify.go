package main

import (
	"go.uber.org/zap"

	config "github.com/NordCoder/pingboard/internal/config/pingboard"
	"github.com/NordCoder/pingboard/internal/domain/notification"
	"github.com/NordCoder/pingboard/internal/services/notifier"
)

func initSink(cfg config.NotifyCfg, l *zap.Logger) notification.Sink {
	var sinks []notification.Sink
	if cfg.Log {
		sinks = append(sinks, notifier.NewLog(l))
	}
	if s := notifier.NewSlack(cfg.SlackWebhook, nil); s != nil {
		sinks = append(sinks, s)
	}
	if cfg.SMTP.Addr != "" {
		sinks = append(sinks, notifier.NewEmail(notifier.NewMailer(cfg.SMTP, l), cfg.SMTP.To))
	}
	l.Info("notification sinks", zap.Int("count", len(sinks)))
	return notifier.NewMulti(sinks...)
}
