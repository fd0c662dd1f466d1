package metric

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "canvasvault"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Storage metrics
	StorageMode       prometheus.Gauge
	StorageFailovers  prometheus.Counter
	StorageOperations *prometheus.CounterVec

	// Snapshot metrics
	SnapshotDuration *prometheus.HistogramVec
	SnapshotRecords  *prometheus.CounterVec
	SnapshotFailures *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with every application metric plus the
// Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		StorageMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "mode",
			Help:      "Active storage backend: 1 durable, 0 memory",
		}),
		StorageFailovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "failovers_total",
			Help:      "Number of switches from the durable backend to memory",
		}),
		StorageOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage operations by collection, operation and serving backend",
		}, []string{"collection", "op", "backend"}),

		SnapshotDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "duration_seconds",
			Help:      "Snapshot export and import duration",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"op"}),
		SnapshotRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "records_total",
			Help:      "Records written to or read from snapshots",
		}, []string{"op", "collection"}),
		SnapshotFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "failures_total",
			Help:      "Failed snapshot operations",
		}, []string{"op"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.StorageMode,
		r.StorageFailovers,
		r.StorageOperations,
		r.SnapshotDuration,
		r.SnapshotRecords,
		r.SnapshotFailures,
		r.RequestsTotal,
		r.RequestDuration,
	)
	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns an HTTP handler for the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Registerer exposes the underlying registry for extra collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return nil
	}
	return r.registry
}

// Gatherer exposes the underlying registry for scraping in tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// SetStorageMode records the active backend.
func (r *Registry) SetStorageMode(durable bool) {
	if r == nil {
		return
	}
	if durable {
		r.StorageMode.Set(1)
	} else {
		r.StorageMode.Set(0)
	}
}

// IncFailover counts a switch to memory.
func (r *Registry) IncFailover() {
	if r == nil {
		return
	}
	r.StorageFailovers.Inc()
}

// ObserveStorageOp counts one storage operation.
func (r *Registry) ObserveStorageOp(collection, op, backend string) {
	if r == nil {
		return
	}
	r.StorageOperations.WithLabelValues(collection, op, backend).Inc()
}

// ObserveSnapshot records the duration of a snapshot operation and counts
// it as failed when err is non-nil.
func (r *Registry) ObserveSnapshot(op string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.SnapshotDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		r.SnapshotFailures.WithLabelValues(op).Inc()
	}
}

// AddSnapshotRecords counts records moved by a snapshot operation.
func (r *Registry) AddSnapshotRecords(op, collection string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.SnapshotRecords.WithLabelValues(op, collection).Add(float64(n))
}

// ObserveRequest records one HTTP request.
func (r *Registry) ObserveRequest(method, route string, code int, d time.Duration) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
