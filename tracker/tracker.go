// Package tracker is the Go client for the Project Zurich analytics API.
// Every emit is fire-and-forget: sends never block the caller, failures are
// dropped silently, and Close drains in-flight sends so process shutdown
// does not lose the last beacons.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const (
	defaultSendTimeout = 5 * time.Second
	maxInflightSends   = 16
)

// Config configures a tracking client.
type Config struct {
	// BaseURL is the API root, e.g. "https://zurich.example.com/api".
	BaseURL string
	// Token is an explicit visitor token from an invite URL; when empty the
	// stored or generated anonymous token is used.
	Token string
	// Page identifies the page or surface this client reports for.
	Page string
	// HTTPClient overrides the default client (5s timeout).
	HTTPClient *http.Client
}

// Client emits analytics events for one page session.
type Client struct {
	baseURL string
	token   string
	page    string
	httpc   *http.Client
	start   time.Time

	emailOnce sync.Once
	email     string

	endOnce sync.Once

	wg  sync.WaitGroup
	sem chan struct{}
}

// NewClient resolves the visitor identity and starts the session clock.
func NewClient(cfg Config) *Client {
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: defaultSendTimeout}
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   ResolveToken(cfg.Token),
		page:    cfg.Page,
		httpc:   httpc,
		start:   time.Now(),
		sem:     make(chan struct{}, maxInflightSends),
	}
}

// Token returns the resolved visitor token.
func (c *Client) Token() string {
	return c.token
}

// PageVisit reports the initial page load.
func (c *Client) PageVisit(referrer string) {
	c.Track("page_visit", map[string]any{"page": c.page, "ref": referrer})
}

// Download reports a document download. An explicit file type wins;
// otherwise the type is inferred from the surface label.
func (c *Client) Download(label, explicitType, source string) {
	fileType := explicitType
	if fileType == "" {
		fileType = ClassifyFileType(label)
	}
	c.Track("download", map[string]any{"file_type": fileType, "source": source, "page": c.page})
}

// NDARequest reports the distinguished "request NDA" action.
func (c *Client) NDARequest() {
	c.Track("nda_request", map[string]any{"signed": false, "page": c.page})
}

// CTAClick reports a click on the call-to-action element.
func (c *Client) CTAClick() {
	c.Track("cta_click", map[string]any{"page": c.page})
}

// SessionEnd reports elapsed wall-clock session time. It fires at most
// once per client even when multiple teardown paths call it.
func (c *Client) SessionEnd() {
	c.endOnce.Do(func() {
		total := int(time.Since(c.start).Round(time.Second).Seconds())
		c.Track("session_end", map[string]any{"total_time": total, "page": c.page})
	})
}

// Track emits an arbitrary event asynchronously and returns immediately.
func (c *Client) Track(eventType string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.sem <- struct{}{}
		defer func() { <-c.sem }()

		payload := map[string]any{
			"eventType":     eventType,
			"visitorToken":  c.token,
			"visitor_email": c.visitorEmail(),
			"data":          data,
		}
		c.post("/analytics-events", payload)
	}()
}

// Close waits for in-flight sends, bounded by ctx.
func (c *Client) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post fires one request and swallows every failure; tracking must never
// surface errors.
func (c *Client) post(path string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := c.httpc.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return
	}
	resp.Body.Close()
}

// visitorEmail resolves the e-mail associated with the token from the
// visitors listing, once per client, best-effort.
func (c *Client) visitorEmail() string {
	c.emailOnce.Do(func() {
		resp, err := c.httpc.Get(c.baseURL + "/visitors?limit=1000")
		if err != nil {
			return
		}
		defer resp.Body.Close()

		var result struct {
			Data []struct {
				Token string `json:"token"`
				Email string `json:"email"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return
		}
		for _, v := range result.Data {
			if v.Token == c.token {
				c.email = v.Email
				return
			}
		}
	})
	return c.email
}
