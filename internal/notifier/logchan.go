package notifier

import (
	"context"

	logx "todoreminder/pkg/logx"
)

// Log writes notifications to the logger. It is the fallback channel when
// nothing else is configured, and what a headless box ends up with.
type Log struct {
	log logx.Logger
}

func NewLog(log logx.Logger) *Log {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Log{log: log}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Send(_ context.Context, n Notification) error {
	l.log.Info("reminder", logx.String("title", n.Title), logx.String("body", n.Body), logx.Time("due", n.At))
	return nil
}
