package authcore

import "sync/atomic"

// MetricID identifies one counter in the in-process metrics set.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that returned a token pair.
	MetricLoginSuccess MetricID = iota
	// MetricLoginMFARequired counts logins deferred to an MFA challenge.
	MetricLoginMFARequired
	// MetricLoginFailure counts rejected logins.
	MetricLoginFailure
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricLogoutAll counts whole-account logouts.
	MetricLogoutAll
	// MetricRenewSuccess counts successful refresh redemptions.
	MetricRenewSuccess
	// MetricRenewFailure counts rejected renewals.
	MetricRenewFailure
	// MetricRenewReplay counts refresh tokens presented after redemption.
	MetricRenewReplay
	// MetricSessionCancelled counts single-session cancellations.
	MetricSessionCancelled
	// MetricValidateSuccess counts validations that found a live session.
	MetricValidateSuccess
	// MetricValidateRevoked counts validations of cryptographically valid
	// tokens whose session row was gone.
	MetricValidateRevoked
	// MetricEnrollInitiated counts enrollment starts.
	MetricEnrollInitiated
	// MetricEnrollConfirmed counts enrollments flipped to confirmed.
	MetricEnrollConfirmed
	// MetricEnrollFailed counts wrong confirmation codes.
	MetricEnrollFailed
	// MetricEnrollLocked counts enrollments destroyed by the try bound.
	MetricEnrollLocked
	// MetricMethodDisabled counts methods switched off.
	MetricMethodDisabled
	// MetricChallengeSent counts login-time codes dispatched.
	MetricChallengeSent
	// MetricChallengeVerified counts login-time challenges solved.
	MetricChallengeVerified
	// MetricChallengeFailed counts wrong login-time codes.
	MetricChallengeFailed
	// MetricChallengeLocked counts login-time lockouts.
	MetricChallengeLocked
	// MetricBackupCodeConsumed counts backup codes burned.
	MetricBackupCodeConsumed

	metricIDCount
)

// Metrics holds lock-free counters. A disabled instance turns every
// operation into a no-op.
type Metrics struct {
	enabled  bool
	counters []atomic.Uint64
}

// NewMetrics creates a [Metrics] set.
func NewMetrics(cfg MetricsConfig) *Metrics {
	m := &Metrics{enabled: cfg.Enabled}
	if cfg.Enabled {
		m.counters = make([]atomic.Uint64, metricIDCount)
	}
	return m
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || int(id) >= len(m.counters) {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() map[MetricID]uint64 {
	out := make(map[MetricID]uint64, metricIDCount)
	if m == nil || !m.enabled {
		return out
	}
	for i := range m.counters {
		out[MetricID(i)] = m.counters[i].Load()
	}
	return out
}
