package metrics

import "sync/atomic"

// MetricID indexes a counter in the fixed-size counter table.
type MetricID uint32

const (
	MetricTokenPairIssued MetricID = iota
	MetricTokenValidateSuccess
	MetricTokenValidateFailure
	MetricTokenBlacklisted
	MetricTokenRevoked
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshIPMismatch
	MetricMFATokenIssued
	MetricAccessAllowed
	MetricAccessDenied
	MetricDirectoryFailure
	MetricTOTPSuccess
	MetricTOTPFailure
	MetricChallengeCreated
	MetricChallengeSuccess
	MetricChallengeFailure
	MetricChallengeExpired
	MetricChallengeAttemptsExceeded
	MetricBackupCodeUsed
	MetricBackupCodeFailed
	MetricBackupCodesRegenerated
	MetricRateLimitHit
	MetricIPFiltered
	MetricCSRFRejected
	MetricBindingMismatch
	MetricSessionRejected

	// MetricIDCount is the number of defined metric IDs.
	MetricIDCount
)

var metricNames = [MetricIDCount]string{
	MetricTokenPairIssued:           "token_pair_issued",
	MetricTokenValidateSuccess:      "token_validate_success",
	MetricTokenValidateFailure:      "token_validate_failure",
	MetricTokenBlacklisted:          "token_blacklisted",
	MetricTokenRevoked:              "token_revoked",
	MetricRefreshSuccess:            "refresh_success",
	MetricRefreshFailure:            "refresh_failure",
	MetricRefreshIPMismatch:         "refresh_ip_mismatch",
	MetricMFATokenIssued:            "mfa_token_issued",
	MetricAccessAllowed:             "access_allowed",
	MetricAccessDenied:              "access_denied",
	MetricDirectoryFailure:          "directory_failure",
	MetricTOTPSuccess:               "totp_success",
	MetricTOTPFailure:               "totp_failure",
	MetricChallengeCreated:          "challenge_created",
	MetricChallengeSuccess:          "challenge_success",
	MetricChallengeFailure:          "challenge_failure",
	MetricChallengeExpired:          "challenge_expired",
	MetricChallengeAttemptsExceeded: "challenge_attempts_exceeded",
	MetricBackupCodeUsed:            "backup_code_used",
	MetricBackupCodeFailed:          "backup_code_failed",
	MetricBackupCodesRegenerated:    "backup_codes_regenerated",
	MetricRateLimitHit:              "rate_limit_hit",
	MetricIPFiltered:                "ip_filtered",
	MetricCSRFRejected:              "csrf_rejected",
	MetricBindingMismatch:           "binding_mismatch",
	MetricSessionRejected:           "session_rejected",
}

// String returns the stable snake_case name of the metric.
func (id MetricID) String() string {
	if id >= MetricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// Config controls metric collection. When Enabled is false every operation
// is a no-op with zero overhead beyond a nil check.
type Config struct {
	Enabled bool
}

// Metrics is a fixed table of atomic counters. All methods are safe for
// concurrent use and never allocate on the increment path.
type Metrics struct {
	counters [MetricIDCount]atomic.Uint64
	enabled  bool
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[MetricID]uint64
}

// New creates a Metrics instance. A nil receiver or disabled config makes
// every operation a no-op.
func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Get returns the current value of the counter identified by id.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns a deep copy of all counters.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{Counters: make(map[MetricID]uint64, MetricIDCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
