package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "breakbot",
			Name:      "booking_created_total",
			Help:      "Count of slot bookings created.",
		},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "breakbot",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled by users.",
		},
	)

	reserveRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "breakbot",
			Name:      "reserve_rejected_total",
			Help:      "Count of rejected reserve attempts by reason.",
		},
		[]string{"reason"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingCancelled, reserveRejected)
	})
}

func IncBookingCreated() {
	bookingCreated.Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncReserveRejected(reason string) {
	reserveRejected.WithLabelValues(reason).Inc()
}
