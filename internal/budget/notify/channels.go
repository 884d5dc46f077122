package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// LogChannel writes notifications to the service log. It stands in for a
// webhook when none is configured.
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel constructs a LogChannel.
func NewLogChannel(logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{logger: logger.Named("notify")}
}

// Send logs content.
func (c *LogChannel) Send(_ context.Context, content string) error {
	c.logger.Warn("over-engagement notification", zap.String("content", content))
	return nil
}

// MultiChannel sends content to every channel and joins their errors.
type MultiChannel struct {
	channels []Channel
}

// NewMultiChannel constructs a MultiChannel, skipping nil channels.
func NewMultiChannel(channels ...Channel) *MultiChannel {
	out := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch != nil {
			out = append(out, ch)
		}
	}
	return &MultiChannel{channels: out}
}

// Send forwards content to all channels.
func (m *MultiChannel) Send(ctx context.Context, content string) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(ctx, content); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
