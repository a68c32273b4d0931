package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes events to the logger only.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, name string, payload interface{}) error {
	p.logger.Info("event", zap.String("event_type", name), zap.Any("payload", payload))
	return nil
}
