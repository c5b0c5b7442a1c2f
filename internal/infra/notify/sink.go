package notify

import (
	"context"
	"log/slog"

	"staybook/internal/app/policies"
)

// LogSink writes notifications to the log instead of a delivery provider.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Send(ctx context.Context, to string, template string, data any) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "to", to, "template", template, "data", data)
	return nil
}

var _ policies.Notifier = LogSink{}
