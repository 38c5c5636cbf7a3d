package broadcast

import (
	"context"
	"log/slog"
)

// SlogSink logs every notification. It is the development stand-in for real
// transports and doubles as an always-on delivery audit trail.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Notify(ctx context.Context, topic Topic, payload map[string]string) error {
	s.logger.InfoContext(ctx, "notification",
		"topic", string(topic),
		"payload", payload,
	)
	return nil
}
