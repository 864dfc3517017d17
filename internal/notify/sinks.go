package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/0x6d61/vulnprobe/internal/findings"
)

var (
	_ findings.NotificationSink = (*Log)(nil)
	_ findings.NotificationSink = Multi(nil)
)

// Log writes messages to a slog logger at info level.
type Log struct {
	Logger *slog.Logger
}

// Send logs message.
func (l *Log) Send(ctx context.Context, message string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "message", message)
	return nil
}

// Multi fans a message out to several sinks. Every sink is tried; the
// failures are joined.
type Multi []findings.NotificationSink

// Send delivers message to every sink.
func (m Multi) Send(ctx context.Context, message string) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
