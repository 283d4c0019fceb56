package dispatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notification",
		Name:      "deliveries_total",
		Help:      "Email delivery attempts by event type and outcome.",
	}, []string{"event_type", "status"})
)

// RegisterMetrics adds the dispatcher counters to the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(deliveries)
	})
}

func observe(eventType, status string) {
	deliveries.WithLabelValues(eventType, status).Inc()
}
