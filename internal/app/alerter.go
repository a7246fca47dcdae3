package app

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Alerter surfaces anomalies to the operators.
type Alerter interface {
	Alert(ctx context.Context, message string)
}

// LogAlerter writes alerts to the log. Used when no Telegram bot is configured.
type LogAlerter struct {
	logger *logrus.Entry
}

func NewLogAlerter(logger *logrus.Entry) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) Alert(_ context.Context, message string) {
	a.logger.WithField("alert", true).Warn(message)
}
