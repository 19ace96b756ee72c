package notify

import (
	"context"
	"log/slog"

	"account_service/internal/models"
)

// Publisher delivers a message to its recipient, directly or through a queue.
type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

// Log is a Publisher for local development. The log line is the delivery,
// so it carries the link.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) SendMessage(ctx context.Context, msg models.Message) error {
	l.log.InfoContext(ctx, "message delivered to log",
		slog.String("to", msg.Email),
		slog.String("subject", msg.Subject),
		slog.String("purpose", msg.Purpose),
		slog.String("link", msg.Link),
	)

	return nil
}
