package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "booking"

var (
	once sync.Once

	availabilityRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_requests_total",
			Help:      "Availability lookups by outcome.",
		},
		[]string{"outcome"},
	)

	availabilityDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_duration_seconds",
			Help:      "Time to compute a provider's available slots.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "created_total",
			Help:      "Bookings created.",
		},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "create_rejected_total",
			Help:      "Booking attempts refused, by reason.",
		},
		[]string{"reason"},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Applied booking status changes, by target status.",
		},
		[]string{"status"},
	)

	strikes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellation_strikes_total",
			Help:      "Late-cancellation strikes recorded against clients.",
		},
	)

	suspensions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_suspensions_total",
			Help:      "Clients suspended after reaching the strike threshold.",
		},
	)

	notifyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_failures_total",
			Help:      "Notifications that could not be enqueued, by event type.",
		},
		[]string{"event_type"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			availabilityRequests,
			availabilityDuration,
			bookingCreated,
			bookingRejected,
			statusTransitions,
			strikes,
			suspensions,
			notifyFailures,
		)
	})
}

func ObserveAvailability(outcome string, took time.Duration) {
	availabilityRequests.WithLabelValues(outcome).Inc()
	availabilityDuration.Observe(took.Seconds())
}

func IncBookingCreated() {
	bookingCreated.Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

func IncTransition(status string) {
	statusTransitions.WithLabelValues(status).Inc()
}

func IncStrike(suspended bool) {
	strikes.Inc()
	if suspended {
		suspensions.Inc()
	}
}

func IncNotifyFailure(eventType string) {
	notifyFailures.WithLabelValues(eventType).Inc()
}
