package channel

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for channel activity.
type Metrics struct {
	WaitersRegistered prometheus.Counter
	WaitersResolved   prometheus.Counter
	CommandsDelivered prometheus.Counter
	SendsTotal        *prometheus.CounterVec
	FinishedTotal     *prometheus.CounterVec
	PollDelay         prometheus.Histogram
}

// NewMetrics creates and registers channel metrics once per process.
//
// Metrics:
//   - ghsock_waiters_registered_total - Access calls that began waiting
//   - ghsock_waiters_resolved_total - waiters resolved by a delivery
//   - ghsock_commands_delivered_total - commands received from the Seeker
//   - ghsock_sends_total{result} - Sender calls by "ok" or "error"
//   - ghsock_channel_finished_total{cause} - closes by "finish" or "error"
//   - ghsock_poll_delay_seconds - pause scheduled after each poll
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			WaitersRegistered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ghsock_waiters_registered_total",
				Help: "Total number of Access calls that registered a waiter",
			}),
			WaitersResolved: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ghsock_waiters_resolved_total",
				Help: "Total number of waiters resolved by a delivery",
			}),
			CommandsDelivered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ghsock_commands_delivered_total",
				Help: "Total number of commands delivered by the seeker",
			}),
			SendsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ghsock_sends_total",
					Help: "Total number of sender calls",
				},
				[]string{"result"},
			),
			FinishedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ghsock_channel_finished_total",
					Help: "Total number of client channels closed",
				},
				[]string{"cause"},
			),
			PollDelay: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "ghsock_poll_delay_seconds",
				Help:    "Pause scheduled after each poll in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27min
			}),
		}
	})

	return globalMetrics
}

// Observe implements Observer.
func (m *Metrics) Observe(e Event) {
	switch e.Kind {
	case EventWait:
		m.WaitersRegistered.Inc()
	case EventResolve:
		m.WaitersResolved.Inc()
	case EventDeliver:
		m.CommandsDelivered.Add(float64(e.Count))
		m.PollDelay.Observe(e.Delay.Seconds())
	case EventSend:
		result := "ok"
		if e.Err != nil {
			result = "error"
		}
		m.SendsTotal.WithLabelValues(result).Inc()
	case EventFinish:
		cause := "finish"
		if e.Err != nil {
			cause = "error"
		}
		m.FinishedTotal.WithLabelValues(cause).Inc()
	}
}
