// Command track sends a single tracking event against a running API, the
// same way the site pages do. Useful for smoke-testing a deployment and
// for generating sample data.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/alter5/project-zurich/tracker"
)

func main() {
	var (
		api    = flag.String("api", "http://localhost:8080/api", "API base URL")
		token  = flag.String("token", "", "explicit visitor token (default: stored or generated)")
		event  = flag.String("event", "page_visit", "event type: page_visit, download, nda_request, cta_click, session_end")
		label  = flag.String("label", "", "download surface label, used to infer the file type")
		source = flag.String("source", "cli", "download source tag")
		page   = flag.String("page", "index.html", "page identifier")
	)
	flag.Parse()

	client := tracker.NewClient(tracker.Config{
		BaseURL: *api,
		Token:   *token,
		Page:    *page,
	})

	switch *event {
	case "page_visit":
		client.PageVisit("")
	case "download":
		client.Download(*label, "", *source)
	case "nda_request":
		client.NDARequest()
	case "cta_click":
		client.CTAClick()
	case "session_end":
		client.SessionEnd()
	default:
		client.Track(*event, map[string]any{"page": *page})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "timed out waiting for event delivery:", err)
		os.Exit(1)
	}

	fmt.Printf("sent %s as %s\n", *event, client.Token())
}
