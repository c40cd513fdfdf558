package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FilesOrganized counts files moved into the library, by classification.
	FilesOrganized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediasorter",
		Name:      "files_organized_total",
		Help:      "Files transferred into the library.",
	}, []string{"classification"})

	FilesQuarantined = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mediasorter",
		Name:      "files_quarantined_total",
		Help:      "Files diverted to the unidentified root.",
	})

	TransferFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mediasorter",
		Name:      "transfer_failures_total",
		Help:      "Transfers that failed and were left for the next cycle.",
	})

	// CatalogRequests counts catalog HTTP calls by endpoint and outcome (ok / error).
	CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediasorter",
		Name:      "catalog_requests_total",
		Help:      "Requests issued to the metadata catalog.",
	}, []string{"endpoint", "outcome"})

	CatalogCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mediasorter",
		Name:      "catalog_cache_hits_total",
		Help:      "Resolutions answered from the in-memory cache.",
	})

	BatchesFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mediasorter",
		Name:      "batches_flushed_total",
		Help:      "Debounced batches handed to the organizer.",
	})

	InFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediasorter",
		Name:      "files_in_flight",
		Help:      "Files currently being handled.",
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
