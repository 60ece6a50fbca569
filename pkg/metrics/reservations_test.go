package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestReservationMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReservationMetrics(reg)
	m.Observe("create_hold", OutcomeSuccess)
	m.Observe("create_hold", OutcomeConflict)
	m.Observe("create_hold", OutcomeConflict)
	m.IncExpired()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	mf := findMetricFamily(mfs, "bedbroker_reservation_operations_total")
	if mf == nil {
		t.Fatal("operations metric missing")
	}
	var conflicts float64
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "outcome", OutcomeConflict) {
			conflicts = metric.GetCounter().GetValue()
		}
	}
	if conflicts != 2 {
		t.Fatalf("expected 2 conflicts, got %f", conflicts)
	}
	expired := findMetricFamily(mfs, "bedbroker_reservation_holds_expired_total")
	if expired == nil || expired.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one expired hold, got %+v", expired)
	}
}

func TestNilReservationMetricsIsNoop(t *testing.T) {
	var m *ReservationMetrics
	m.Observe("confirm", OutcomeSuccess)
	m.IncExpired()
	m.IncDeactivated()
	NewReservationMetrics(nil).Observe("cancel", OutcomeRejected)
}
