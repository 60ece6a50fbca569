package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bedbroker"

// Reservation outcomes recorded per operation.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// ReservationMetrics counts hold lifecycle transitions. A nil receiver is a
// no-op so services can run without a registry.
type ReservationMetrics struct {
	operations  *prometheus.CounterVec
	expired     prometheus.Counter
	deactivated prometheus.Counter
}

// NewReservationMetrics registers the reservation metrics on reg.
func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservation_operations_total",
		Help:      "Reservation operations by name and outcome.",
	}, []string{"operation", "outcome"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservation_holds_expired_total",
		Help:      "Pending holds released by the expiration sweeper.",
	})
	deactivated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listings_deactivated_total",
		Help:      "Listings deactivated after their last bed was occupied.",
	})
	reg.MustRegister(operations, expired, deactivated)
	return &ReservationMetrics{
		operations:  operations,
		expired:     expired,
		deactivated: deactivated,
	}
}

// Observe records one operation outcome.
func (m *ReservationMetrics) Observe(operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (m *ReservationMetrics) IncExpired() {
	if m == nil || m.expired == nil {
		return
	}
	m.expired.Inc()
}

func (m *ReservationMetrics) IncDeactivated() {
	if m == nil || m.deactivated == nil {
		return
	}
	m.deactivated.Inc()
}
