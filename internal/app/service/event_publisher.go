package service

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/alter5/project-zurich/internal/app/model"
)

// EventPublisher mirrors accepted analytics events onto NATS JetStream for
// downstream consumers (dashboards, enrichment jobs). Publishing is
// best-effort and never fails ingestion.
type EventPublisher struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewEventPublisher creates a publisher on the given JetStream context.
func NewEventPublisher(js nats.JetStreamContext, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{js: js, logger: logger}
}

// EnsureStream creates the analytics stream if it does not exist yet.
func (p *EventPublisher) EnsureStream() error {
	if _, err := p.js.StreamInfo(model.EventStreamName); err == nil {
		return nil
	}

	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:     model.EventStreamName,
		Subjects: []string{model.EventStreamSubject},
		MaxBytes: model.EventStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Publish sends one event to the stream, logging and swallowing failures.
func (p *EventPublisher) Publish(event *model.AnalyticsEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal analytics event", zap.Error(err))
		return
	}

	if _, err := p.js.Publish(model.EventStreamSubject, data); err != nil {
		p.logger.Warn("failed to mirror analytics event",
			zap.String("id", event.ID),
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}
