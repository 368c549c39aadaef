package bridge

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the bridge collectors. NewMetrics(nil) builds unregistered
// collectors, which is what the tests use.
type Metrics struct {
	Inbound       *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	Publishes     *prometheus.CounterVec
	StatusQueries *prometheus.CounterVec
	StatusWait    prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plant_bridge",
			Name:      "inbound_messages_total",
			Help:      "Messages received on the status topic, by classification.",
		}, []string{"kind"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plant_bridge",
			Name:      "notifications_total",
			Help:      "Asynchronous chat notifications, by outcome.",
		}, []string{"result"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plant_bridge",
			Name:      "control_publishes_total",
			Help:      "Control messages handed to the bus, by command and outcome.",
		}, []string{"command", "result"}),
		StatusQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plant_bridge",
			Name:      "status_queries_total",
			Help:      "Status commands, by how they were answered.",
		}, []string{"outcome"}),
		StatusWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plant_bridge",
			Name:      "status_wait_seconds",
			Help:      "Time a status command spent waiting for the device.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 3, 5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Inbound, m.Notifications, m.Publishes, m.StatusQueries, m.StatusWait)
	}
	return m
}

// Label values.
const (
	kindStatus    = "status"
	kindEvent     = "event"
	kindMalformed = "malformed"
	kindDuplicate = "duplicate"
	kindIgnored   = "ignored"

	resultSent        = "sent"
	resultFailed      = "failed"
	resultUnbound     = "dropped_unbound"
	resultQueueFull   = "dropped_queue_full"
	resultBreakerOpen = "breaker_open"

	outcomeFresh  = "fresh"
	outcomeRecent = "recent"
	outcomeStale  = "stale"
	outcomeNoData = "no_data"
)
