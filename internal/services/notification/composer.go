package notification

import (
	"context"
	"log/slog"
)

// LogComposer пишет исходящее уведомление в лог вместо реальной доставки.
type LogComposer struct {
	log *slog.Logger
}

// NewLogComposer создаёт composer для локального режима.
func NewLogComposer(log *slog.Logger) *LogComposer {
	return &LogComposer{log: log}
}

func (c *LogComposer) Compose(_ context.Context, to, subject, body string) error {
	c.log.Info("outbound notification",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("body_len", len(body)),
	)
	return nil
}
