package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reservation and cancellation outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
	OutcomeRejected    = "rejected"
	OutcomeDuplicate   = "duplicate"
	OutcomeBusy        = "busy"
	OutcomeError       = "error"
)

var (
	reservationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_attempts_total",
			Help: "Seat reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	bookingCancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_cancellations_total",
			Help: "Booking cancellation attempts by outcome",
		},
		[]string{"outcome"},
	)

	seatLockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seat_lock_wait_seconds",
			Help:    "Time spent acquiring a seat row lock",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)
)

// ObserveReservation counts one reservation attempt.
func ObserveReservation(outcome string) {
	reservationAttempts.WithLabelValues(outcome).Inc()
}

// ObserveCancellation counts one cancellation attempt.
func ObserveCancellation(outcome string) {
	bookingCancellations.WithLabelValues(outcome).Inc()
}

// ObserveSeatLockWait records how long acquiring a seat lock took.
func ObserveSeatLockWait(d time.Duration) {
	seatLockWait.Observe(d.Seconds())
}
