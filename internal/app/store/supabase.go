package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alter5/project-zurich/config"
	"github.com/alter5/project-zurich/internal/app/model"
)

const supabaseRequestTimeout = 10 * time.Second

// SupabaseStore talks to the hosted record store over its REST query
// dialect (collections "visitors" and "analytics").
type SupabaseStore struct {
	baseURL string
	key     string
	client  *http.Client
}

// NewSupabaseStore builds a REST-backed store. It returns ErrNotConfigured
// when the URL or key is absent so that no operation ever attempts a
// network call against a half-configured deployment.
func NewSupabaseStore(cfg config.SupabaseConfig) (*SupabaseStore, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	return &SupabaseStore{
		baseURL: cfg.URL,
		key:     cfg.Key(),
		client:  &http.Client{Timeout: supabaseRequestTimeout},
	}, nil
}

func (s *SupabaseStore) Source() string {
	return SourceSupabase
}

// request performs one call against /rest/v1/<endpoint>. A 204 with an
// empty body is a successful no-content result; any non-2xx status becomes
// a *StoreError carrying status and body.
func (s *SupabaseStore) request(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("supabase: encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+"/rest/v1/"+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("supabase: build request: %w", err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("supabase: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StoreError{Status: resp.StatusCode, Body: string(raw)}
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	return raw, nil
}

func (s *SupabaseStore) CreateVisitor(ctx context.Context, visitor *model.Visitor) error {
	raw, err := s.request(ctx, http.MethodPost, "visitors", visitor)
	if err != nil {
		return err
	}

	// The store echoes the stored representation back as a one-element
	// array; prefer it over our local copy when present.
	var saved []model.Visitor
	if len(raw) > 0 && json.Unmarshal(raw, &saved) == nil && len(saved) > 0 {
		*visitor = saved[0]
	}
	return nil
}

func (s *SupabaseStore) ListVisitors(ctx context.Context, filter VisitorFilter) (*VisitorPage, error) {
	filter.Normalize()

	endpoint := fmt.Sprintf("visitors?select=*&order=created_at.desc&limit=%d&offset=%d",
		filter.Limit, filter.Offset)
	if filter.Search != "" {
		q := url.QueryEscape(filter.Search)
		endpoint += fmt.Sprintf("&or=(email.ilike.*%s*,name.ilike.*%s*,company.ilike.*%s*)", q, q, q)
	}

	raw, err := s.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var visitors []model.Visitor
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &visitors); err != nil {
			return nil, fmt.Errorf("supabase: decode visitors: %w", err)
		}
	}

	return &VisitorPage{
		Data:   visitors,
		Total:  len(visitors),
		Source: SourceSupabase,
	}, nil
}

func (s *SupabaseStore) GetVisitorByToken(ctx context.Context, token string) (*model.Visitor, error) {
	endpoint := "visitors?select=*&limit=1&token=eq." + url.QueryEscape(token)
	raw, err := s.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var visitors []model.Visitor
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &visitors); err != nil {
			return nil, fmt.Errorf("supabase: decode visitor: %w", err)
		}
	}
	if len(visitors) == 0 {
		return nil, ErrVisitorNotFound
	}
	return &visitors[0], nil
}

// RecordAccess is a read-modify-write: the REST dialect has no atomic
// increment, so two concurrent page_visit events for one token can both
// read the same access_count and one update is lost. Known consistency
// gap, accepted for this store.
func (s *SupabaseStore) RecordAccess(ctx context.Context, token string, now time.Time) error {
	visitor, err := s.GetVisitorByToken(ctx, token)
	if err != nil {
		return err
	}

	patch := map[string]any{
		"access_count": visitor.AccessCount + 1,
		"last_access":  now,
	}
	if visitor.FirstAccess == nil {
		patch["first_access"] = now
	}

	_, err = s.request(ctx, http.MethodPatch, "visitors?token=eq."+url.QueryEscape(token), patch)
	return err
}

func (s *SupabaseStore) CreateEvent(ctx context.Context, event *model.AnalyticsEvent) error {
	raw, err := s.request(ctx, http.MethodPost, "analytics", event)
	if err != nil {
		return err
	}

	var saved []model.AnalyticsEvent
	if len(raw) > 0 && json.Unmarshal(raw, &saved) == nil && len(saved) > 0 {
		*event = saved[0]
	}
	return nil
}

// ListEvents delegates only the filters the REST dialect exposes:
// exact-match on event_type and visitor_token. Free-text search over events
// is a fallback-path feature and is ignored here.
func (s *SupabaseStore) ListEvents(ctx context.Context, filter EventFilter) (*EventPage, error) {
	filter.Normalize()

	endpoint := fmt.Sprintf("analytics?select=*&order=timestamp.desc&limit=%d&offset=%d",
		filter.Limit, filter.Offset)
	if filter.EventType != "" {
		endpoint += "&event_type=eq." + url.QueryEscape(filter.EventType)
	}
	if filter.VisitorToken != "" {
		endpoint += "&visitor_token=eq." + url.QueryEscape(filter.VisitorToken)
	}

	raw, err := s.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var events []model.AnalyticsEvent
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, fmt.Errorf("supabase: decode events: %w", err)
		}
	}

	return &EventPage{
		Data:   events,
		Total:  len(events),
		Source: SourceSupabase,
	}, nil
}
