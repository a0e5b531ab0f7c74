package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alter5/project-zurich/internal/app/model"
	"github.com/alter5/project-zurich/internal/app/store"
)

type mockStore struct {
	createVisitorFn func(ctx context.Context, visitor *model.Visitor) error
	listVisitorsFn  func(ctx context.Context, filter store.VisitorFilter) (*store.VisitorPage, error)
	getVisitorFn    func(ctx context.Context, token string) (*model.Visitor, error)
	recordAccessFn  func(ctx context.Context, token string, now time.Time) error
	createEventFn   func(ctx context.Context, event *model.AnalyticsEvent) error
	listEventsFn    func(ctx context.Context, filter store.EventFilter) (*store.EventPage, error)
}

func (m *mockStore) CreateVisitor(ctx context.Context, visitor *model.Visitor) error {
	if m.createVisitorFn != nil {
		return m.createVisitorFn(ctx, visitor)
	}
	return nil
}

func (m *mockStore) ListVisitors(ctx context.Context, filter store.VisitorFilter) (*store.VisitorPage, error) {
	if m.listVisitorsFn != nil {
		return m.listVisitorsFn(ctx, filter)
	}
	return &store.VisitorPage{Source: store.SourceMemory}, nil
}

func (m *mockStore) GetVisitorByToken(ctx context.Context, token string) (*model.Visitor, error) {
	if m.getVisitorFn != nil {
		return m.getVisitorFn(ctx, token)
	}
	return nil, store.ErrVisitorNotFound
}

func (m *mockStore) RecordAccess(ctx context.Context, token string, now time.Time) error {
	if m.recordAccessFn != nil {
		return m.recordAccessFn(ctx, token, now)
	}
	return nil
}

func (m *mockStore) CreateEvent(ctx context.Context, event *model.AnalyticsEvent) error {
	if m.createEventFn != nil {
		return m.createEventFn(ctx, event)
	}
	return nil
}

func (m *mockStore) ListEvents(ctx context.Context, filter store.EventFilter) (*store.EventPage, error) {
	if m.listEventsFn != nil {
		return m.listEventsFn(ctx, filter)
	}
	return &store.EventPage{Source: store.SourceMemory}, nil
}

func (m *mockStore) Source() string { return store.SourceMemory }

func TestTrackingService_CreateVisitor_Defaults(t *testing.T) {
	var saved *model.Visitor
	st := &mockStore{
		createVisitorFn: func(ctx context.Context, visitor *model.Visitor) error {
			saved = visitor
			return nil
		},
	}

	svc := NewTrackingService(st, nil, nil)
	visitor, err := svc.CreateVisitor(context.Background(), VisitorInput{
		Email: "a@b.com",
		Token: "zrch_001",
	})
	if err != nil {
		t.Fatalf("CreateVisitor returned error: %v", err)
	}

	if visitor.ID == "" {
		t.Fatal("expected server-generated id")
	}
	if visitor.Status != model.VisitorStatusActive {
		t.Fatalf("expected default status active, got %q", visitor.Status)
	}
	if visitor.AccessCount != 0 {
		t.Fatalf("expected access_count 0, got %d", visitor.AccessCount)
	}
	if visitor.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
	if visitor.FirstAccess != nil || visitor.LastAccess != nil {
		t.Fatal("expected access timestamps to start null")
	}
	if saved == nil || saved.Token != "zrch_001" {
		t.Fatal("expected visitor to be persisted")
	}
}

func TestTrackingService_CreateVisitor_UniqueIDs(t *testing.T) {
	svc := NewTrackingService(&mockStore{}, nil, nil)

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		v, err := svc.CreateVisitor(context.Background(), VisitorInput{Token: "t"})
		if err != nil {
			t.Fatalf("CreateVisitor returned error: %v", err)
		}
		if seen[v.ID] {
			t.Fatalf("duplicate id %q", v.ID)
		}
		seen[v.ID] = true
	}
}

func TestTrackingService_RecordEvent_PageVisitSideEffect(t *testing.T) {
	var patched string
	st := &mockStore{
		recordAccessFn: func(ctx context.Context, token string, now time.Time) error {
			patched = token
			return nil
		},
	}

	svc := NewTrackingService(st, nil, nil)
	event, err := svc.RecordEvent(context.Background(), EventInput{
		EventType:    model.EventPageVisit,
		VisitorToken: "zrch_001",
	})
	if err != nil {
		t.Fatalf("RecordEvent returned error: %v", err)
	}

	if event.ID == "" {
		t.Fatal("expected server-generated id")
	}
	if patched != "zrch_001" {
		t.Fatalf("expected access patch for zrch_001, got %q", patched)
	}
}

func TestTrackingService_RecordEvent_SideEffectFailureSwallowed(t *testing.T) {
	st := &mockStore{
		recordAccessFn: func(ctx context.Context, token string, now time.Time) error {
			return errors.New("store down")
		},
	}

	svc := NewTrackingService(st, nil, nil)
	if _, err := svc.RecordEvent(context.Background(), EventInput{
		EventType:    model.EventPageVisit,
		VisitorToken: "zrch_001",
	}); err != nil {
		t.Fatalf("side-effect failure must not fail the request, got %v", err)
	}
}

func TestTrackingService_RecordEvent_NoSideEffectForOtherTypes(t *testing.T) {
	st := &mockStore{
		recordAccessFn: func(ctx context.Context, token string, now time.Time) error {
			t.Fatal("RecordAccess must not be called for download events")
			return nil
		},
	}

	svc := NewTrackingService(st, nil, nil)
	if _, err := svc.RecordEvent(context.Background(), EventInput{
		EventType:    model.EventDownload,
		VisitorToken: "zrch_001",
	}); err != nil {
		t.Fatalf("RecordEvent returned error: %v", err)
	}
}

func TestTrackingService_RecordEvent_NoSideEffectWithoutToken(t *testing.T) {
	st := &mockStore{
		recordAccessFn: func(ctx context.Context, token string, now time.Time) error {
			t.Fatal("RecordAccess must not be called without a token")
			return nil
		},
	}

	svc := NewTrackingService(st, nil, nil)
	if _, err := svc.RecordEvent(context.Background(), EventInput{
		EventType: model.EventPageVisit,
	}); err != nil {
		t.Fatalf("RecordEvent returned error: %v", err)
	}
}

func TestTrackingService_RecordEvent_TimestampOverride(t *testing.T) {
	override := time.Date(2024, 9, 18, 10, 30, 0, 0, time.UTC)

	svc := NewTrackingService(&mockStore{}, nil, nil)
	event, err := svc.RecordEvent(context.Background(), EventInput{
		EventType: model.EventDownload,
		Timestamp: &override,
	})
	if err != nil {
		t.Fatalf("RecordEvent returned error: %v", err)
	}
	if !event.Timestamp.Equal(override) {
		t.Fatalf("expected client timestamp override, got %v", event.Timestamp)
	}
	if event.CreatedAt.Equal(override) {
		t.Fatal("created_at must never be client-supplied")
	}
}

func TestTrackingService_RecordEvent_DefaultsTimestampAndData(t *testing.T) {
	before := time.Now().UTC()

	svc := NewTrackingService(&mockStore{}, nil, nil)
	event, err := svc.RecordEvent(context.Background(), EventInput{
		EventType: model.EventCTAClick,
	})
	if err != nil {
		t.Fatalf("RecordEvent returned error: %v", err)
	}
	if event.Timestamp.Before(before) {
		t.Fatalf("expected timestamp defaulted to now, got %v", event.Timestamp)
	}
	if event.EventData == nil {
		t.Fatal("expected event data defaulted to an empty object")
	}
}

func TestTrackingService_RecordEvent_StoreFailure(t *testing.T) {
	st := &mockStore{
		createEventFn: func(ctx context.Context, event *model.AnalyticsEvent) error {
			return &store.StoreError{Status: 500, Body: "boom"}
		},
	}

	svc := NewTrackingService(st, nil, nil)
	if _, err := svc.RecordEvent(context.Background(), EventInput{EventType: "custom"}); err == nil {
		t.Fatal("expected store failure to surface")
	}
}
