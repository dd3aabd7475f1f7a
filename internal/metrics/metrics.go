// Package metrics holds the Prometheus collectors of the MES services.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mes"

// Registry owns a private Prometheus registry and every collector on it.
type Registry struct {
	reg *prometheus.Registry

	// Resolver
	NotificationsReceived *prometheus.CounterVec
	PayloadsRejected      *prometheus.CounterVec
	OrdersResolved        prometheus.Counter
	ResolutionFailures    *prometheus.CounterVec
	ResolutionDuration    prometheus.Histogram
	BOMEntriesEmitted     prometheus.Counter
	ChainSteps            prometheus.Histogram
	IncompatibleSteps     prometheus.Counter

	// Intake
	OrdersPlaced       prometheus.Counter
	OrderPlaceFailures *prometheus.CounterVec
	DocumentsRejected  prometheus.Counter

	// Backlog sweep
	BacklogReannounced prometheus.Counter
}

// NewRegistry creates a registry with Go and process collectors plus the MES
// collectors.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "resolver", Name: "notifications_received_total",
		Help: "Notifications received by the resolution loop, by channel.",
	}, []string{"channel"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "resolver", Name: "payloads_rejected_total",
		Help: "Notifications whose payload could not be parsed, by channel.",
	}, []string{"channel"})
	resolved := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "resolver", Name: "orders_resolved_total",
		Help: "Orders turned into a persisted BOM batch.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "resolver", Name: "resolution_failures_total",
		Help: "Failed order resolutions, by error code.",
	}, []string{"code"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "resolver", Name: "resolution_duration_seconds",
		Help:    "Time from order notification to committed BOM batch.",
		Buckets: prometheus.DefBuckets,
	})
	emitted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "resolver", Name: "bom_entries_emitted_total",
		Help: "BOM rows written.",
	})
	steps := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "resolver", Name: "chain_steps",
		Help:    "Length of selected production chains.",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})
	incompatible := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "resolver", Name: "incompatible_steps_total",
		Help: "BOM steps whose tool no production line offers.",
	})

	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "intake", Name: "orders_placed_total",
		Help: "Client orders inserted and announced.",
	})
	placeFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "intake", Name: "order_place_failures_total",
		Help: "Client orders that could not be placed, by error code.",
	}, []string{"code"})
	docsRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "intake", Name: "documents_rejected_total",
		Help: "Inbound order documents that failed to parse.",
	})

	backlog := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "backlog", Name: "orders_reannounced_total",
		Help: "Unresolved orders announced again by the backlog sweep.",
	})

	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		notifications, rejected, resolved, failures, duration, emitted, steps, incompatible,
		placed, placeFailures, docsRejected,
		backlog,
	)

	return &Registry{
		reg:                   r,
		NotificationsReceived: notifications,
		PayloadsRejected:      rejected,
		OrdersResolved:        resolved,
		ResolutionFailures:    failures,
		ResolutionDuration:    duration,
		BOMEntriesEmitted:     emitted,
		ChainSteps:            steps,
		IncompatibleSteps:     incompatible,
		OrdersPlaced:          placed,
		OrderPlaceFailures:    placeFailures,
		DocumentsRejected:     docsRejected,
		BacklogReannounced:    backlog,
	}
}

// RegisterPool exports the running, free and cap figures of a worker pool
// as gauges labelled with the pool name.
func (r *Registry) RegisterPool(name string, stats func() map[string]int) error {
	for _, key := range []string{"running", "free", "cap"} {
		key := key
		g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker_pool",
			Name:        key,
			Help:        "Worker pool " + key + " goroutines.",
			ConstLabels: prometheus.Labels{"pool": name},
		}, func() float64 { return float64(stats()[key]) })
		if err := r.reg.Register(g); err != nil {
			return fmt.Errorf("register %s pool gauge %s: %w", name, key, err)
		}
	}
	return nil
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
