package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hashdrop"

// Collector bundles the service-level Prometheus metrics.
type Collector struct {
	registry prometheus.Registerer

	// Uploads counts completed uploads.
	Uploads prometheus.Counter

	// UploadBytes counts file bytes accepted through completed uploads.
	UploadBytes prometheus.Counter

	// DedupHits counts stores resolved by an existing file.
	DedupHits prometheus.Counter

	// UploadFailures counts uploads aborted by client or storage errors.
	UploadFailures prometheus.Counter
}

// NewCollector registers the upload metrics with the given registerer.
// Pass prometheus.NewRegistry() in tests to avoid collisions on the
// default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		Uploads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Number of uploads completed successfully.",
		}),
		UploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "File bytes accepted through completed uploads.",
		}),
		DedupHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_hits_total",
			Help:      "Stores satisfied by an already existing file.",
		}),
		UploadFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_failures_total",
			Help:      "Uploads aborted by client or storage errors.",
		}),
	}
}

// TrackSessions registers a gauge reporting the number of live upload
// sessions.
func (c *Collector) TrackSessions(count func() int) {
	promauto.With(c.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Upload sessions currently tracked in memory.",
	}, func() float64 {
		return float64(count())
	})
}

// Handler returns the /metrics HTTP handler when the collector is backed by
// a gatherer, falling back to the default gatherer otherwise.
func (c *Collector) Handler() http.Handler {
	if g, ok := c.registry.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
