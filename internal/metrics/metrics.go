package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SessionsBooked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eduniche_sessions_booked_total",
			Help: "Number of tutoring sessions created",
		},
	)

	BookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eduniche_booking_conflicts_total",
			Help: "Number of booking attempts rejected for interval overlap",
		},
	)

	PaymentsConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eduniche_payments_confirmed_total",
			Help: "Number of payments verified on-chain and completed",
		},
	)

	PaymentVerificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eduniche_payment_verification_failures_total",
			Help: "Number of rejected on-chain payment verifications",
		},
	)
)

func Register() {
	prometheus.MustRegister(
		SessionsBooked,
		BookingConflicts,
		PaymentsConfirmed,
		PaymentVerificationFailures,
	)
}
