package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alter5/project-zurich/config"
	"github.com/alter5/project-zurich/internal/app/model"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *SupabaseStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewSupabaseStore(config.SupabaseConfig{URL: srv.URL, ServiceKey: "service-key"})
	if err != nil {
		t.Fatalf("NewSupabaseStore returned error: %v", err)
	}
	return s
}

func TestNewSupabaseStore_NotConfigured(t *testing.T) {
	if _, err := NewSupabaseStore(config.SupabaseConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewSupabaseStore(config.SupabaseConfig{URL: "https://x.supabase.co"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured without a key, got %v", err)
	}
}

func TestSupabaseStore_ListEvents_QueryDialect(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()

		if r.Header.Get("apikey") != "service-key" {
			t.Errorf("missing apikey header")
		}
		if r.Header.Get("Authorization") != "Bearer service-key" {
			t.Errorf("missing bearer header")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"e1","event_type":"download"}]`))
	})

	page, err := s.ListEvents(context.Background(), EventFilter{
		EventType:    "download",
		VisitorToken: "zrch_001",
		Limit:        10,
		Offset:       20,
		Search:       "ignored by this dialect",
	})
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}

	if gotPath != "/rest/v1/analytics" {
		t.Fatalf("expected /rest/v1/analytics, got %q", gotPath)
	}
	expect := map[string]string{
		"select":        "*",
		"order":         "timestamp.desc",
		"limit":         "10",
		"offset":        "20",
		"event_type":    "eq.download",
		"visitor_token": "eq.zrch_001",
	}
	for k, v := range expect {
		if len(gotQuery[k]) == 0 || gotQuery[k][0] != v {
			t.Fatalf("expected query %s=%s, got %v", k, v, gotQuery[k])
		}
	}
	if len(gotQuery["or"]) != 0 {
		t.Fatal("free-text search must not be delegated for events")
	}

	if page.Total != 1 || page.Data[0].ID != "e1" {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Source != SourceSupabase {
		t.Fatalf("expected source supabase, got %q", page.Source)
	}
}

func TestSupabaseStore_ListVisitors_SearchORGroup(t *testing.T) {
	var gotOr string
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotOr = r.URL.Query().Get("or")
		w.Write([]byte(`[]`))
	})

	if _, err := s.ListVisitors(context.Background(), VisitorFilter{Search: "fund"}); err != nil {
		t.Fatalf("ListVisitors returned error: %v", err)
	}

	want := "(email.ilike.*fund*,name.ilike.*fund*,company.ilike.*fund*)"
	if gotOr != want {
		t.Fatalf("expected or-group %q, got %q", want, gotOr)
	}
}

func TestSupabaseStore_StoreError(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"permission denied"}`))
	})

	_, err := s.ListVisitors(context.Background(), VisitorFilter{})
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *StoreError, got %v", err)
	}
	if storeErr.Status != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", storeErr.Status)
	}
	if storeErr.Body != `{"message":"permission denied"}` {
		t.Fatalf("expected response body carried on the error, got %q", storeErr.Body)
	}
}

func TestSupabaseStore_GetVisitorByToken_NotFound(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	if _, err := s.GetVisitorByToken(context.Background(), "missing"); !errors.Is(err, ErrVisitorNotFound) {
		t.Fatalf("expected ErrVisitorNotFound, got %v", err)
	}
}

func TestSupabaseStore_RecordAccess_FirstVisit(t *testing.T) {
	var patch map[string]any
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`[{"id":"v1","token":"zrch_001","access_count":3,"first_access":null}]`))
		case http.MethodPatch:
			if got := r.URL.Query().Get("token"); got != "eq.zrch_001" {
				t.Errorf("expected token=eq.zrch_001, got %q", got)
			}
			if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
				t.Errorf("decode patch: %v", err)
			}
			// PostgREST answers PATCH without representation as 204.
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	now := time.Now().UTC()
	if err := s.RecordAccess(context.Background(), "zrch_001", now); err != nil {
		t.Fatalf("RecordAccess returned error: %v", err)
	}

	if got, ok := patch["access_count"].(float64); !ok || int(got) != 4 {
		t.Fatalf("expected access_count 4 in patch, got %v", patch["access_count"])
	}
	if _, ok := patch["first_access"]; !ok {
		t.Fatal("expected first_access set on first visit")
	}
	if _, ok := patch["last_access"]; !ok {
		t.Fatal("expected last_access in patch")
	}
}

func TestSupabaseStore_RecordAccess_FirstAccessSetOnce(t *testing.T) {
	var patch map[string]any
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`[{"id":"v1","token":"zrch_001","access_count":1,"first_access":"2024-09-18T10:30:00Z"}]`))
		case http.MethodPatch:
			json.NewDecoder(r.Body).Decode(&patch)
			w.WriteHeader(http.StatusNoContent)
		}
	})

	if err := s.RecordAccess(context.Background(), "zrch_001", time.Now().UTC()); err != nil {
		t.Fatalf("RecordAccess returned error: %v", err)
	}
	if _, ok := patch["first_access"]; ok {
		t.Fatal("first_access must not be patched once set")
	}
}

func TestSupabaseStore_CreateVisitor_UsesRepresentation(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("expected Prefer: return=representation")
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":"stored-id","token":"zrch_001","status":"active"}]`))
	})

	v := &model.Visitor{ID: "local-id", Token: "zrch_001"}
	if err := s.CreateVisitor(context.Background(), v); err != nil {
		t.Fatalf("CreateVisitor returned error: %v", err)
	}
	if v.ID != "stored-id" {
		t.Fatalf("expected the stored representation to win, got id %q", v.ID)
	}
}
