package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alter5/project-zurich/internal/app/model"
	"github.com/alter5/project-zurich/internal/app/store"
	"github.com/alter5/project-zurich/internal/infra/prometheus"
)

// TrackingService is the behaviour-level pipeline: visitor registration,
// event ingestion with the page-visit side effect, and paginated listings.
type TrackingService interface {
	CreateVisitor(ctx context.Context, input VisitorInput) (*model.Visitor, error)
	RecordEvent(ctx context.Context, input EventInput) (*model.AnalyticsEvent, error)
	ListVisitors(ctx context.Context, filter store.VisitorFilter) (*store.VisitorPage, error)
	ListEvents(ctx context.Context, filter store.EventFilter) (*store.EventPage, error)
}

type trackingService struct {
	store     store.Store
	publisher *EventPublisher
	logger    *zap.Logger
}

// NewTrackingService returns a service backed by the given store. The
// publisher is optional; when nil, accepted events are not mirrored.
func NewTrackingService(st store.Store, publisher *EventPublisher, logger *zap.Logger) TrackingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &trackingService{store: st, publisher: publisher, logger: logger}
}

// VisitorInput captures a visitor-creation payload after field-name
// normalization. Missing fields are defaulted, not rejected.
type VisitorInput struct {
	Email   string
	Token   string
	Name    string
	Company string
	Status  string
}

// EventInput captures an event-creation payload after field-name
// normalization at the ingestion boundary.
type EventInput struct {
	EventType    string
	VisitorToken string
	VisitorEmail string
	Data         map[string]any
	SessionID    string
	PageURL      string
	UserAgent    string
	IPAddress    string
	Timestamp    *time.Time
}

func (s *trackingService) CreateVisitor(ctx context.Context, input VisitorInput) (*model.Visitor, error) {
	status := input.Status
	if status == "" {
		status = model.VisitorStatusActive
	}

	visitor := &model.Visitor{
		ID:          uuid.New().String(),
		Token:       input.Token,
		Email:       input.Email,
		Name:        input.Name,
		Company:     input.Company,
		Status:      status,
		AccessCount: 0,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.CreateVisitor(ctx, visitor); err != nil {
		prometheus.StoreErrors.Inc()
		return nil, fmt.Errorf("create visitor: %w", err)
	}

	prometheus.VisitorsCreated.Inc()
	s.logger.Info("visitor created",
		zap.String("id", visitor.ID),
		zap.String("token", visitor.Token),
		zap.String("email", visitor.Email),
	)
	return visitor, nil
}

func (s *trackingService) RecordEvent(ctx context.Context, input EventInput) (*model.AnalyticsEvent, error) {
	now := time.Now().UTC()

	// Client timestamps are accepted only as an override of "now"; ids are
	// always server-generated.
	ts := now
	if input.Timestamp != nil {
		ts = input.Timestamp.UTC()
	}

	data := input.Data
	if data == nil {
		data = map[string]any{}
	}

	event := &model.AnalyticsEvent{
		ID:           uuid.New().String(),
		EventType:    input.EventType,
		VisitorToken: input.VisitorToken,
		VisitorEmail: input.VisitorEmail,
		EventData:    data,
		SessionID:    input.SessionID,
		PageURL:      input.PageURL,
		UserAgent:    input.UserAgent,
		IPAddress:    input.IPAddress,
		Timestamp:    ts,
		CreatedAt:    now,
	}

	if err := s.store.CreateEvent(ctx, event); err != nil {
		prometheus.StoreErrors.Inc()
		return nil, fmt.Errorf("create event: %w", err)
	}

	prometheus.EventsIngested.WithLabelValues(event.EventType).Inc()

	// Side effect: page_visit bumps the visitor's access counters. Failure
	// never fails the event-creation request.
	if event.EventType == model.EventPageVisit && event.VisitorToken != "" {
		if err := s.store.RecordAccess(ctx, event.VisitorToken, now); err != nil {
			if errors.Is(err, store.ErrVisitorNotFound) {
				s.logger.Debug("page_visit for unknown visitor token",
					zap.String("visitor_token", event.VisitorToken))
			} else {
				s.logger.Warn("failed to update visitor access counters",
					zap.String("visitor_token", event.VisitorToken),
					zap.Error(err))
			}
		}
	}

	if s.publisher != nil {
		s.publisher.Publish(event)
	}

	s.logger.Info("analytics event recorded",
		zap.String("id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("visitor_token", event.VisitorToken),
	)
	return event, nil
}

func (s *trackingService) ListVisitors(ctx context.Context, filter store.VisitorFilter) (*store.VisitorPage, error) {
	page, err := s.store.ListVisitors(ctx, filter)
	if err != nil {
		prometheus.StoreErrors.Inc()
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	return page, nil
}

func (s *trackingService) ListEvents(ctx context.Context, filter store.EventFilter) (*store.EventPage, error) {
	page, err := s.store.ListEvents(ctx, filter)
	if err != nil {
		prometheus.StoreErrors.Inc()
		return nil, fmt.Errorf("list events: %w", err)
	}
	return page, nil
}
