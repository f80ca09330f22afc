// Package metrics exposes Prometheus collectors for live mirrors and session
// machines. A nil *Collector is valid and records nothing, so components can
// be built without metrics in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the application records.
type Collector struct {
	mirrorsOpen    *prometheus.GaugeVec
	batches        *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	mirrorErrors   *prometheus.CounterVec
	sessionsActive prometheus.Gauge
	transitions    *prometheus.CounterVec
	provisions     *prometheus.CounterVec
	staleDropped   prometheus.Counter
	socketsOpen    *prometheus.GaugeVec
	framesSent     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		mirrorsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "admitdesk_mirrors_open",
			Help: "Live mirrors currently subscribed.",
		}, []string{"mirror"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admitdesk_mirror_batches_total",
			Help: "Batches applied to live mirrors.",
		}, []string{"mirror"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admitdesk_mirror_dropped_total",
			Help: "Deliveries dropped because the mirror was already closed.",
		}, []string{"mirror"}),
		mirrorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admitdesk_mirror_errors_total",
			Help: "Live mirrors terminated by a subscription or decode error.",
		}, []string{"mirror"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "admitdesk_sessions_active",
			Help: "Session state machines currently running.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admitdesk_session_transitions_total",
			Help: "Session state transitions by resulting phase.",
		}, []string{"phase"}),
		provisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admitdesk_role_provisions_total",
			Help: "Role record provisioning attempts by outcome.",
		}, []string{"result"}),
		staleDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admitdesk_session_stale_deliveries_total",
			Help: "Role deliveries discarded because the identity had changed.",
		}),
		socketsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "admitdesk_sockets_open",
			Help: "Browser websockets currently streaming snapshots.",
		}, []string{"feed"}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admitdesk_socket_frames_total",
			Help: "Snapshot frames written to browser websockets.",
		}, []string{"feed"}),
	}

	reg.MustRegister(
		c.mirrorsOpen,
		c.batches,
		c.dropped,
		c.mirrorErrors,
		c.sessionsActive,
		c.transitions,
		c.provisions,
		c.staleDropped,
		c.socketsOpen,
		c.framesSent,
	)
	return c
}

// MirrorOpened records a mirror subscribing.
func (c *Collector) MirrorOpened(name string) {
	if c == nil {
		return
	}
	c.mirrorsOpen.WithLabelValues(name).Inc()
}

// MirrorClosed records a mirror releasing its subscription.
func (c *Collector) MirrorClosed(name string) {
	if c == nil {
		return
	}
	c.mirrorsOpen.WithLabelValues(name).Dec()
}

// BatchApplied records one delivered batch.
func (c *Collector) BatchApplied(name string) {
	if c == nil {
		return
	}
	c.batches.WithLabelValues(name).Inc()
}

// DeliveryDropped records a delivery suppressed after close.
func (c *Collector) DeliveryDropped(name string) {
	if c == nil {
		return
	}
	c.dropped.WithLabelValues(name).Inc()
}

// MirrorFailed records a mirror terminated by an error.
func (c *Collector) MirrorFailed(name string) {
	if c == nil {
		return
	}
	c.mirrorErrors.WithLabelValues(name).Inc()
}

// SessionStarted records a session machine starting.
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.sessionsActive.Inc()
}

// SessionStopped records a session machine stopping.
func (c *Collector) SessionStopped() {
	if c == nil {
		return
	}
	c.sessionsActive.Dec()
}

// Transition records a session machine entering phase.
func (c *Collector) Transition(phase string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(phase).Inc()
}

// Provisioned records a provisioning outcome.
func (c *Collector) Provisioned(result string) {
	if c == nil {
		return
	}
	c.provisions.WithLabelValues(result).Inc()
}

// StaleDropped records a role delivery for a superseded identity.
func (c *Collector) StaleDropped() {
	if c == nil {
		return
	}
	c.staleDropped.Inc()
}

// SocketOpened records a websocket starting to stream feed.
func (c *Collector) SocketOpened(feed string) {
	if c == nil {
		return
	}
	c.socketsOpen.WithLabelValues(feed).Inc()
}

// SocketClosed records a websocket for feed going away.
func (c *Collector) SocketClosed(feed string) {
	if c == nil {
		return
	}
	c.socketsOpen.WithLabelValues(feed).Dec()
}

// FrameSent records one snapshot frame written for feed.
func (c *Collector) FrameSent(feed string) {
	if c == nil {
		return
	}
	c.framesSent.WithLabelValues(feed).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
