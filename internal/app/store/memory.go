package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alter5/project-zurich/internal/app/model"
)

// MemoryStore is the fallback path used when no durable store is
// configured. It is process-lifetime only: everything except the seeded
// demonstration events is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	visitors []model.Visitor
	events   []model.AnalyticsEvent
	demo     []model.AnalyticsEvent
}

// NewMemoryStore seeds the fixed demonstration analytics dataset so the
// administrative views have something to show on a fresh deployment.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{demo: demoEvents()}
}

func (s *MemoryStore) Source() string {
	return SourceMemory
}

func demoEvents() []model.AnalyticsEvent {
	ts := func(v string) time.Time {
		t, _ := time.Parse(time.RFC3339, v)
		return t
	}
	return []model.AnalyticsEvent{
		{
			ID:           "demo_event_1",
			VisitorToken: "zrch_demo_001",
			VisitorEmail: "juan.garcia@pension-fund.com",
			EventType:    model.EventPageVisit,
			EventData:    map[string]any{"page": "/index.html"},
			PageURL:      "https://project-zurich.example.com/index.html",
			Timestamp:    ts("2024-09-18T10:30:00Z"),
		},
		{
			ID:           "demo_event_2",
			VisitorToken: "zrch_demo_001",
			VisitorEmail: "juan.garcia@pension-fund.com",
			EventType:    model.EventDownload,
			EventData:    map[string]any{"file_type": "term-sheet", "file": "Project-ZURICH-TermSheet.docx"},
			PageURL:      "https://project-zurich.example.com/index.html",
			Timestamp:    ts("2024-09-18T10:35:00Z"),
		},
		{
			ID:           "demo_event_3",
			VisitorToken: "zrch_demo_002",
			VisitorEmail: "maria.lopez@family-office.es",
			EventType:    model.EventPageVisit,
			EventData:    map[string]any{"page": "/index.html"},
			PageURL:      "https://project-zurich.example.com/index.html",
			Timestamp:    ts("2024-09-18T09:15:00Z"),
		},
		{
			ID:           "demo_event_4",
			VisitorToken: "zrch_demo_002",
			VisitorEmail: "maria.lopez@family-office.es",
			EventType:    model.EventNDARequest,
			EventData:    map[string]any{"action": "initiated"},
			PageURL:      "https://project-zurich.example.com/index.html",
			Timestamp:    ts("2024-09-18T09:20:00Z"),
		},
	}
}

func (s *MemoryStore) CreateVisitor(ctx context.Context, visitor *model.Visitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visitors = append(s.visitors, *visitor)
	return nil
}

func (s *MemoryStore) ListVisitors(ctx context.Context, filter VisitorFilter) (*VisitorPage, error) {
	filter.Normalize()

	s.mu.Lock()
	visitors := make([]model.Visitor, len(s.visitors))
	copy(visitors, s.visitors)
	s.mu.Unlock()

	if filter.Search != "" {
		q := strings.ToLower(filter.Search)
		filtered := visitors[:0]
		for _, v := range visitors {
			if containsFold(v.Email, q) || containsFold(v.Name, q) || containsFold(v.Company, q) {
				filtered = append(filtered, v)
			}
		}
		visitors = filtered
	}

	sort.SliceStable(visitors, func(i, j int) bool {
		return visitors[i].CreatedAt.After(visitors[j].CreatedAt)
	})

	total := len(visitors)
	page := paginateVisitors(visitors, filter.Limit, filter.Offset)

	return &VisitorPage{
		Data:      page,
		Total:     total,
		Source:    SourceMemory,
		RealCount: total,
	}, nil
}

func (s *MemoryStore) GetVisitorByToken(ctx context.Context, token string) (*model.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.visitors {
		if s.visitors[i].Token == token {
			v := s.visitors[i]
			return &v, nil
		}
	}
	return nil, ErrVisitorNotFound
}

// RecordAccess mutates under the lock, so unlike the REST store this path
// has no lost-update window.
func (s *MemoryStore) RecordAccess(ctx context.Context, token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.visitors {
		if s.visitors[i].Token != token {
			continue
		}
		s.visitors[i].AccessCount++
		s.visitors[i].LastAccess = &now
		if s.visitors[i].FirstAccess == nil {
			s.visitors[i].FirstAccess = &now
		}
		return nil
	}
	return ErrVisitorNotFound
}

func (s *MemoryStore) CreateEvent(ctx context.Context, event *model.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

// ListEvents merges the demonstration dataset with session-lifetime records
// before filtering and pagination, and reports real/demo counts so the two
// are distinguishable.
func (s *MemoryStore) ListEvents(ctx context.Context, filter EventFilter) (*EventPage, error) {
	filter.Normalize()

	s.mu.Lock()
	realCount := len(s.events)
	events := make([]model.AnalyticsEvent, 0, len(s.demo)+len(s.events))
	events = append(events, s.demo...)
	events = append(events, s.events...)
	s.mu.Unlock()

	filtered := events[:0]
	for _, e := range events {
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.VisitorToken != "" && e.VisitorToken != filter.VisitorToken {
			continue
		}
		if filter.Search != "" {
			q := strings.ToLower(filter.Search)
			if !containsFold(e.VisitorEmail, q) && !containsFold(e.EventType, q) && !containsFold(e.PageURL, q) {
				continue
			}
		}
		filtered = append(filtered, e)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})

	total := len(filtered)
	page := paginateEvents(filtered, filter.Limit, filter.Offset)

	return &EventPage{
		Data:      page,
		Total:     total,
		Source:    SourceMemory,
		RealCount: realCount,
		DemoCount: len(s.demo),
	}, nil
}

func containsFold(s, loweredQuery string) bool {
	return strings.Contains(strings.ToLower(s), loweredQuery)
}

func paginateVisitors(visitors []model.Visitor, limit, offset int) []model.Visitor {
	if offset >= len(visitors) {
		return []model.Visitor{}
	}
	end := offset + limit
	if end > len(visitors) {
		end = len(visitors)
	}
	return visitors[offset:end]
}

func paginateEvents(events []model.AnalyticsEvent, limit, offset int) []model.AnalyticsEvent {
	if offset >= len(events) {
		return []model.AnalyticsEvent{}
	}
	end := offset + limit
	if end > len(events) {
		end = len(events)
	}
	return events[offset:end]
}
