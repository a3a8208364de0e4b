// Package metrics exposes Prometheus collectors for the registry, the
// broadcast path and the launcher.
//
// Every method is safe on a nil *Metrics so components can be built without
// instrumentation in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aviator"

type Metrics struct {
	mutations        *prometheus.CounterVec
	persistFailures  prometheus.Counter
	listenerFailures prometheus.Counter
	broadcasts       prometheus.Counter
	deliveryFailures prometheus.Counter
	droppedNotifies  prometheus.Counter
	connections      prometheus.Gauge
	launches         *prometheus.CounterVec
}

// New registers the collectors on reg. Passing prometheus.NewRegistry()
// keeps tests isolated from the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "mutations_total",
			Help:      "Registry mutations by operation",
		}, []string{"op"}),

		persistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "persist_failures_total",
			Help:      "Registry writes that failed to reach disk",
		}),

		listenerFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "listener_failures_total",
			Help:      "Change listeners that panicked",
		}),

		broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "broadcasts_total",
			Help:      "Broadcast rounds executed",
		}),

		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "delivery_failures_total",
			Help:      "Per-connection send failures during broadcast",
		}),

		droppedNotifies: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "dropped_notifications_total",
			Help:      "Change notifications dropped because the loop was not running",
		}),

		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "connections",
			Help:      "Currently connected streaming clients",
		}),

		launches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launcher",
			Name:      "launches_total",
			Help:      "Launch attempts by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) Mutation(op string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op).Inc()
}

func (m *Metrics) PersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) ListenerFailure() {
	if m == nil {
		return
	}
	m.listenerFailures.Inc()
}

func (m *Metrics) Broadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

func (m *Metrics) DeliveryFailure() {
	if m == nil {
		return
	}
	m.deliveryFailures.Inc()
}

func (m *Metrics) DroppedNotification() {
	if m == nil {
		return
	}
	m.droppedNotifies.Inc()
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

// Launch records a launch attempt; result is "success", "not_found" or "error".
func (m *Metrics) Launch(result string) {
	if m == nil {
		return
	}
	m.launches.WithLabelValues(result).Inc()
}
