// Package metrics exposes reconciliation and write outcomes to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Collector records dashboard metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	polls           *prometheus.CounterVec
	pollsSuppressed *prometheus.CounterVec
	pollsDiscarded  *prometheus.CounterVec
	writes          *prometheus.CounterVec
	overrides       *prometheus.GaugeVec
	wsClients       prometheus.Gauge
}

// New creates a collector. prefix defaults to "huedash".
func New(prefix string) *Collector {
	if prefix == "" {
		prefix = "huedash"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		polls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_polls_total",
				Help: "Completed polls by loop and result",
			},
			[]string{"loop", "result"},
		),
		pollsSuppressed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_polls_suppressed_total",
				Help: "Polls skipped because of a recent local edit",
			},
			[]string{"loop"},
		),
		pollsDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_polls_discarded_total",
				Help: "Poll results dropped because the focus changed",
			},
			[]string{"loop"},
		),
		writes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_writes_total",
				Help: "Outgoing commands by target and result",
			},
			[]string{"target", "result"},
		),
		overrides: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: prefix + "_overrides_active",
				Help: "Optimistic overrides waiting for confirmation",
			},
			[]string{"domain"},
		),
		wsClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: prefix + "_websocket_clients",
				Help: "Connected WebSocket clients",
			},
		),
	}
}

// PollCompleted counts a finished poll.
func (c *Collector) PollCompleted(loop string, err error) {
	c.polls.WithLabelValues(loop, result(err)).Inc()
}

// PollSuppressed counts a poll skipped during the grace period.
func (c *Collector) PollSuppressed(loop string) {
	c.pollsSuppressed.WithLabelValues(loop).Inc()
}

// PollDiscarded counts a poll result dropped for a stale focus.
func (c *Collector) PollDiscarded(loop string) {
	c.pollsDiscarded.WithLabelValues(loop).Inc()
}

// WriteCompleted counts an outgoing command.
func (c *Collector) WriteCompleted(target string, err error) {
	c.writes.WithLabelValues(target, result(err)).Inc()
}

// OverridesActive sets the pending override count of a domain.
func (c *Collector) OverridesActive(domain string, n int) {
	c.overrides.WithLabelValues(domain).Set(float64(n))
}

// ClientConnected and ClientDisconnected track WebSocket clients.
func (c *Collector) ClientConnected()    { c.wsClients.Inc() }
func (c *Collector) ClientDisconnected() { c.wsClients.Dec() }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}
