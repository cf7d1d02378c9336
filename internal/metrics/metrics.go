package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingOutcome = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "booking_outcome_total",
			Help:      "Count of booking attempts by outcome code.",
		},
		[]string{"outcome"},
	)

	idempotentReplays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "idempotent_replays_total",
			Help:      "Count of booking requests answered from the idempotency ledger.",
		},
	)

	compensation = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "compensation_total",
			Help:      "Count of compensation attempts by step and result.",
		},
		[]string{"step", "result"},
	)

	storeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "store_errors_total",
			Help:      "Count of external store failures by operation.",
		},
		[]string{"operation"},
	)

	outboxReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "outbox_reconciled_total",
			Help:      "Count of outbox intents resolved by the reconciler, by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingOutcome,
			idempotentReplays,
			compensation,
			storeErrors,
			outboxReconciled,
		)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncBookingOutcome(outcome string) {
	bookingOutcome.WithLabelValues(outcome).Inc()
}

func IncIdempotentReplay() {
	idempotentReplays.Inc()
}

func IncCompensation(step, result string) {
	compensation.WithLabelValues(step, result).Inc()
}

func IncStoreError(operation string) {
	storeErrors.WithLabelValues(operation).Inc()
}

func IncOutboxReconciled(result string) {
	outboxReconciled.WithLabelValues(result).Inc()
}
