package metric

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Namespace prefixes every metric name.
const Namespace = "trajsnap"

// Result label values.
const (
	ResultOK       = "ok"
	ResultConflict = "conflict"
	ResultError    = "error"
	ResultCached   = "cached"
)

// Registry holds all application metrics.
//
// A nil *Registry is valid; every recording method is then a no-op.
type Registry struct {
	registry *prometheus.Registry

	Compositions     *prometheus.CounterVec
	SnapshotsSaved   prometheus.Counter
	SnapshotsLoaded  prometheus.Counter
	SnapshotsDeleted prometheus.Counter
	CacheHits        prometheus.Counter
	CachedSnapshots  prometheus.Gauge
	Resolutions      *prometheus.CounterVec
	LoadDuration     prometheus.Histogram
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// NewRegistry creates a registry with Go runtime and process collectors
// plus the snapshot metrics.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		Compositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "types",
			Name:      "compositions_total",
			Help:      "Snapshot type compositions by result",
		}, []string{"result"}),
		SnapshotsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "snapshots_saved_total",
			Help:      "Snapshot records written (each reversal pair counts twice)",
		}),
		SnapshotsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "snapshots_loaded_total",
			Help:      "Snapshot records decoded from the engine",
		}),
		SnapshotsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "snapshots_deleted_total",
			Help:      "Snapshot records removed",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "identity_cache_hits_total",
			Help:      "Loads served from the identity cache",
		}),
		CachedSnapshots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "identity_cache_entries",
			Help:      "Materialized snapshots held by the identity cache",
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "proxy",
			Name:      "resolutions_total",
			Help:      "Placeholder resolutions by result",
		}, []string{"result"}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "load_duration_seconds",
			Help:      "Latency of loading one snapshot record from the engine",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served by route and status code",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		r.Compositions,
		r.SnapshotsSaved,
		r.SnapshotsLoaded,
		r.SnapshotsDeleted,
		r.CacheHits,
		r.CachedSnapshots,
		r.Resolutions,
		r.LoadDuration,
		r.HTTPRequests,
		r.HTTPDuration,
	)

	return r
}

// Prometheus exposes the underlying registry for extra collectors.
func (r *Registry) Prometheus() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteText writes every metric family whose name carries the namespace
// prefix in the Prometheus text format.
func (r *Registry) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), Namespace+"_") {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// ObserveComposition counts one type composition.
func (r *Registry) ObserveComposition(result string) {
	if r == nil {
		return
	}
	r.Compositions.WithLabelValues(result).Inc()
}

// ObserveSaved counts written snapshot records.
func (r *Registry) ObserveSaved(n int) {
	if r == nil {
		return
	}
	r.SnapshotsSaved.Add(float64(n))
}

// ObserveLoaded counts one decoded record and its latency.
func (r *Registry) ObserveLoaded(elapsed time.Duration) {
	if r == nil {
		return
	}
	r.SnapshotsLoaded.Inc()
	r.LoadDuration.Observe(elapsed.Seconds())
}

// ObserveDeleted counts removed snapshot records.
func (r *Registry) ObserveDeleted(n int) {
	if r == nil {
		return
	}
	r.SnapshotsDeleted.Add(float64(n))
}

// ObserveCacheHit counts one identity cache hit.
func (r *Registry) ObserveCacheHit() {
	if r == nil {
		return
	}
	r.CacheHits.Inc()
}

// SetCachedSnapshots sets the identity cache size gauge.
func (r *Registry) SetCachedSnapshots(n int) {
	if r == nil {
		return
	}
	r.CachedSnapshots.Set(float64(n))
}

// ObserveResolution counts one placeholder resolution.
func (r *Registry) ObserveResolution(result string) {
	if r == nil {
		return
	}
	r.Resolutions.WithLabelValues(result).Inc()
}

// ObserveRequest counts one served HTTP request. Route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (r *Registry) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
