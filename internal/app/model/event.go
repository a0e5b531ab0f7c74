package model

import "time"

// Recognized event types. Anything else lands in the open custom bucket and
// is stored as-is.
const (
	EventPageVisit  = "page_visit"
	EventDownload   = "download"
	EventNDARequest = "nda_request"
	EventCTAClick   = "cta_click"
	EventSessionEnd = "session_end"
	EventUnknown    = "unknown"
)

// AnalyticsEvent represents one discrete tracked interaction. Events are
// immutable once created; visitor_token is a soft reference and may point at
// a token with no matching visitor.
type AnalyticsEvent struct {
	ID           string         `json:"id" gorm:"primaryKey;size:64"`
	EventType    string         `json:"event_type" gorm:"size:64;not null;index"`
	VisitorToken string         `json:"visitor_token" gorm:"size:64;index"`
	VisitorEmail string         `json:"visitor_email" gorm:"size:255"`
	EventData    map[string]any `json:"event_data" gorm:"serializer:json;type:jsonb"`
	SessionID    string         `json:"session_id" gorm:"size:64"`
	PageURL      string         `json:"page_url" gorm:"size:512"`
	UserAgent    string         `json:"user_agent" gorm:"size:512"`
	IPAddress    string         `json:"ip_address" gorm:"size:64"`
	Timestamp    time.Time      `json:"timestamp" gorm:"index"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName maps AnalyticsEvent onto the "analytics" collection.
func (AnalyticsEvent) TableName() string {
	return "analytics"
}

const (
	EventStreamName     = "ANALYTICS"
	EventStreamSubject  = "analytics.events"
	EventStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
