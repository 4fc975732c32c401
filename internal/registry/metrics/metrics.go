package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registry module. Tracks lifecycle
// counts, collision compensation, cache effectiveness, and critical-path
// durations.
type Metrics struct {
	GatewaysCreated prometheus.Counter
	GatewaysDeleted prometheus.Counter
	NameConflicts   prometheus.Counter
	IDConflicts     prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	CertsIssued     prometheus.Counter
	CertRedirects   prometheus.Counter

	CreateDuration prometheus.Histogram
	ReadDuration   prometheus.Histogram
	UpdateDuration prometheus.Histogram
}

// New creates a Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		GatewaysCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syndic_gateways_created_total",
			Help: "Total number of gateways created",
		}),
		GatewaysDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syndic_gateways_deleted_total",
			Help: "Total number of gateways deleted",
		}),
		NameConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syndic_name_conflicts_total",
			Help: "Create/rename attempts rejected because the name was taken",
		}),
		IDConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syndic_id_conflicts_total",
			Help: "Create attempts that collided on a random gateway ID",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syndic_read_cache_hits_total",
			Help: "Gateway reads served from the read cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syndic_read_cache_misses_total",
			Help: "Gateway reads that fell through to the store",
		}),
		CertsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syndic_certs_issued_total",
			Help: "Certificates and manifests served at current version",
		}),
		CertRedirects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syndic_cert_redirects_total",
			Help: "Certificate fetches redirected because the caller was stale",
		}),
		CreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "syndic_create_duration_seconds",
			Help:    "Duration of gateway Create operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ReadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "syndic_read_duration_seconds",
			Help:    "Duration of gateway Read operations (certificate critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		UpdateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "syndic_update_duration_seconds",
			Help:    "Duration of gateway Update operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveCreate records the duration of a Create operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

// ObserveRead records the duration of a Read operation.
func (m *Metrics) ObserveRead(start time.Time) {
	m.ReadDuration.Observe(time.Since(start).Seconds())
}

// ObserveUpdate records the duration of an Update operation.
func (m *Metrics) ObserveUpdate(start time.Time) {
	m.UpdateDuration.Observe(time.Since(start).Seconds())
}
