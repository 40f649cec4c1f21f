// Package messaging delivers outbound chat messages.
package messaging

import (
	"context"

	"github.com/rs/zerolog"
)

// Sender delivers a text message to a chat address.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no gateway is configured.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "log-sender").Logger()}
}

func (s *LogSender) SendText(_ context.Context, to, text string) error {
	s.logger.Info().Str("to", to).Str("text", text).Msg("outbound message")
	return nil
}
