package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveRun("hold-expiry", 250*time.Millisecond, nil)
	m.ObserveRun("hold-expiry", 10*time.Millisecond, errors.New("db down"))
	m.ObserveRun("", time.Millisecond, nil)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("hold-expiry", JobResultSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("hold-expiry", JobResultFailure)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", JobResultSuccess)))
	require.Greater(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("hold-expiry")), 0.0)

	hist := histogramFor(t, reg, "bedbroker_job_duration_seconds", "hold-expiry")
	require.EqualValues(t, 2, hist.GetSampleCount())
	require.InDelta(t, 0.26, hist.GetSampleSum(), 0.001)
}

func TestNilCronJobMetricsIsNoop(t *testing.T) {
	m := NewCronJobMetrics(nil)
	require.Nil(t, m)
	m.ObserveRun("hold-expiry", time.Second, nil)
}

func histogramFor(t *testing.T, reg *prometheus.Registry, name, job string) *dto.Histogram {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	if mf := findMetricFamily(families, name); mf != nil {
		for _, metric := range mf.GetMetric() {
			if matchesLabel(metric.GetLabel(), "job", job) {
				return metric.GetHistogram()
			}
		}
	}
	t.Fatalf("histogram %s{job=%q} not gathered", name, job)
	return nil
}

func findMetricFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
