package lock

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jathurchan/davlock/types"
)

const (
	resultSuccess  = "success"
	resultConflict = "conflict"
	resultFail     = "fail"
)

// PrometheusMetrics implements Metrics with client_golang collectors.
type PrometheusMetrics struct {
	LockTotal    *prometheus.CounterVec // share, result=success|conflict|fail
	RefreshTotal *prometheus.CounterVec // result=success|fail
	UnlockTotal  *prometheus.CounterVec // result=success|fail
	ConfirmTotal *prometheus.CounterVec // result=success|fail
	ExpiredTotal prometheus.Counter

	SweepSeconds prometheus.Histogram
	HoldSeconds  *prometheus.HistogramVec // reason=unlocked|expired
	ActiveLocks  prometheus.Gauge
}

var _ Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates the collectors and registers them on reg.
// A nil reg skips registration.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		LockTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "davlock_lock_requests_total",
				Help: "Total lock requests by share mode and result",
			},
			[]string{"share", "result"},
		),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "davlock_refresh_requests_total",
				Help: "Total refresh requests by result",
			},
			[]string{"result"},
		),
		UnlockTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "davlock_unlock_requests_total",
				Help: "Total unlock requests by result",
			},
			[]string{"result"},
		),
		ConfirmTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "davlock_confirm_total",
				Help: "Total conditional mutation checks by result",
			},
			[]string{"result"},
		),
		ExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "davlock_expired_locks_total",
			Help: "Total number of locks reclaimed after their timeout elapsed",
		}),
		SweepSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "davlock_sweep_duration_seconds",
			Help:    "Duration of reclamation sweeps",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		HoldSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "davlock_lock_hold_seconds",
				Help:    "How long locks stayed active, by release reason",
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
			},
			[]string{"reason"},
		),
		ActiveLocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "davlock_active_locks",
			Help: "Number of currently active locks",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LockTotal,
			m.RefreshTotal,
			m.UnlockTotal,
			m.ConfirmTotal,
			m.ExpiredTotal,
			m.SweepSeconds,
			m.HoldSeconds,
			m.ActiveLocks,
		)
	}
	return m
}

func result(success bool) string {
	if success {
		return resultSuccess
	}
	return resultFail
}

func (m *PrometheusMetrics) IncrLockRequest(share types.ShareMode, success bool, conflict bool) {
	r := result(success)
	if conflict {
		r = resultConflict
	}
	m.LockTotal.WithLabelValues(share.String(), r).Inc()
}

func (m *PrometheusMetrics) IncrRefreshRequest(success bool) {
	m.RefreshTotal.WithLabelValues(result(success)).Inc()
}

func (m *PrometheusMetrics) IncrUnlockRequest(success bool) {
	m.UnlockTotal.WithLabelValues(result(success)).Inc()
}

func (m *PrometheusMetrics) IncrExpiredLock() {
	m.ExpiredTotal.Inc()
}

func (m *PrometheusMetrics) IncrConfirm(success bool) {
	m.ConfirmTotal.WithLabelValues(result(success)).Inc()
}

func (m *PrometheusMetrics) ObserveSweepDuration(duration time.Duration, _ int) {
	m.SweepSeconds.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) ObserveLockHoldDuration(holdTime time.Duration, reason types.ReleaseReason) {
	m.HoldSeconds.WithLabelValues(reason.String()).Observe(holdTime.Seconds())
}

func (m *PrometheusMetrics) SetActiveLocks(count int) {
	m.ActiveLocks.Set(float64(count))
}
