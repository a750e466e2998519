// Package obs holds the process-wide prometheus instruments.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics carries the counters the floor components increment. A private
// registry keeps tests free of global registration conflicts.
type Metrics struct {
	registry *prometheus.Registry

	TicksPublished    prometheus.Counter
	TicksDeduped      prometheus.Counter
	TicksLaggedDrops  prometheus.Counter
	OrdersSubmitted   prometheus.Counter
	OrdersRejected    prometheus.Counter
	OrdersCancelled   prometheus.Counter
	FillsApplied      prometheus.Counter
	StatusesDiscarded prometheus.Counter
}

// New creates and registers the floor's instruments under the given
// namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TicksPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_published_total",
			Help:      "Ticks broadcast to broker subscribers",
		}),
		TicksDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_deduplicated_total",
			Help:      "Ticks dropped because the symbol's price was unchanged",
		}),
		TicksLaggedDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_lagged_dropped_total",
			Help:      "Ticks dropped past lagging broker subscribers",
		}),
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Orders forwarded to the order sink",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Orders rejected locally before emission",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Pending orders cancelled by the shutdown sweep",
		}),
		FillsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_applied_total",
			Help:      "Status events settled against a trader account",
		}),
		StatusesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statuses_discarded_total",
			Help:      "Status events with no matching pending order",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		m.TicksPublished,
		m.TicksDeduped,
		m.TicksLaggedDrops,
		m.OrdersSubmitted,
		m.OrdersRejected,
		m.OrdersCancelled,
		m.FillsApplied,
		m.StatusesDiscarded,
	)
	return m
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
