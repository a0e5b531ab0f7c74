package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsIngested counts accepted analytics events by type.
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zurich_events_ingested_total",
		Help: "Analytics events accepted by the ingestion pipeline.",
	}, []string{"event_type"})

	// VisitorsCreated counts visitor registrations.
	VisitorsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zurich_visitors_created_total",
		Help: "Visitor records created.",
	})

	// StoreErrors counts failed record store operations.
	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zurich_store_errors_total",
		Help: "Record store operations that returned an error.",
	})
)
