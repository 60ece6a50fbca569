package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	JobResultSuccess = "success"
	JobResultFailure = "failure"
)

// CronJobMetrics tracks sweeper and retention runs. last_success lets an
// alert fire when holds stop being expired.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// NewCronJobMetrics returns a no-op recorder when reg is nil.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Cron job runs by result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Cron job run time.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	return m
}

// ObserveRun records one run; err decides the result label.
func (m *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if m == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, JobResultFailure).Inc()
		return
	}
	m.runs.WithLabelValues(job, JobResultSuccess).Inc()
	m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
