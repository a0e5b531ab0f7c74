package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alter5/project-zurich/internal/app/model"
)

var (
	// ErrNotConfigured signals that the record store has no connection
	// configuration at all. Callers treat it like a remote failure for
	// fallback purposes but may distinguish it in logs.
	ErrNotConfigured = errors.New("record store not configured")

	// ErrVisitorNotFound signals that no visitor matches the given token.
	ErrVisitorNotFound = errors.New("visitor not found")
)

// StoreError is a non-2xx response from the remote record store. Callers
// must not assume partial success.
type StoreError struct {
	Status int
	Body   string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("record store error: %d - %s", e.Status, e.Body)
}

// VisitorFilter narrows and pages a visitor listing. Search is a
// case-insensitive substring match over email/name/company; backends that
// cannot express it ignore it.
type VisitorFilter struct {
	Limit  int
	Offset int
	Search string
}

// EventFilter narrows and pages an analytics listing. EventType and
// VisitorToken are exact matches; Search covers
// visitor_email/event_type/page_url on backends that support it.
type EventFilter struct {
	Limit        int
	Offset       int
	EventType    string
	VisitorToken string
	Search       string
}

// VisitorPage is one page of visitors plus provenance diagnostics.
type VisitorPage struct {
	Data      []model.Visitor
	Total     int
	Source    string
	RealCount int
	DemoCount int
}

// EventPage is one page of analytics events plus provenance diagnostics.
type EventPage struct {
	Data      []model.AnalyticsEvent
	Total     int
	Source    string
	RealCount int
	DemoCount int
}

// Store is the persistence contract for the two collections. Handlers and
// services receive an implementation at construction; there is no ambient
// shared state outside of it.
type Store interface {
	CreateVisitor(ctx context.Context, visitor *model.Visitor) error
	ListVisitors(ctx context.Context, filter VisitorFilter) (*VisitorPage, error)
	GetVisitorByToken(ctx context.Context, token string) (*model.Visitor, error)

	// RecordAccess applies the page-visit side effect to the visitor with
	// the given token: access_count+1, last_access=now, and first_access=now
	// only if previously unset.
	RecordAccess(ctx context.Context, token string, now time.Time) error

	CreateEvent(ctx context.Context, event *model.AnalyticsEvent) error
	ListEvents(ctx context.Context, filter EventFilter) (*EventPage, error)

	// Source identifies where listed data came from ("supabase",
	// "postgres", "memory") and is reported verbatim to API clients.
	Source() string
}

const (
	SourceSupabase = "supabase"
	SourcePostgres = "postgres"
	SourceMemory   = "memory"
)

// Normalize clamps paging values to their defaults.
func (f *VisitorFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Normalize clamps paging values to their defaults.
func (f *EventFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
