package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements the realm instrumentation hooks with Prometheus
// collectors.
type Metrics struct {
	RealmsCreated   prometheus.Counter
	RealmSetup      prometheus.Histogram
	KeysBridged     *prometheus.CounterVec
	LazyResolutions prometheus.Counter
	ConnectorCache  *prometheus.CounterVec
}

// NewMetrics creates a metrics collector registered against reg, or the
// default registry when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RealmsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "realmkit_realms_created_total",
			Help: "Total number of sandbox realms created",
		}),
		RealmSetup: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "realmkit_realm_setup_duration_seconds",
			Help:    "Sandbox realm setup duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		KeysBridged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "realmkit_keys_bridged_total",
			Help: "Total number of global keys bridged into sandboxes",
		}, []string{"mode"}),
		LazyResolutions: factory.NewCounter(prometheus.CounterOpts{
			Name: "realmkit_lazy_materializations_total",
			Help: "Total number of lazily bridged keys materialized on first read",
		}),
		ConnectorCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "realmkit_connector_cache_lookups_total",
			Help: "Host connector cache lookups by result",
		}, []string{"result"}),
	}
}

// KeyBridged records one bridged key installation.
func (m *Metrics) KeyBridged(_ string, lazy bool) {
	mode := "eager"
	if lazy {
		mode = "lazy"
	}
	m.KeysBridged.WithLabelValues(mode).Inc()
}

// LazyMaterialized records a first-read materialization.
func (m *Metrics) LazyMaterialized(string) {
	m.LazyResolutions.Inc()
}

// RealmCreated records a completed realm setup.
func (m *Metrics) RealmCreated(_ string, setup time.Duration) {
	m.RealmsCreated.Inc()
	m.RealmSetup.Observe(setup.Seconds())
}

// ConnectorCacheLookup records a connector cache outcome.
func (m *Metrics) ConnectorCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ConnectorCache.WithLabelValues(result).Inc()
}
