package aegis

import "time"

// SecurityFinding is one observation in a [SecurityReport].
type SecurityFinding struct {
	Severity string `json:"severity"`
	Area     string `json:"area"`
	Message  string `json:"message"`
}

// SecurityReport is a read-only snapshot of the engine's security
// posture, intended for operational dashboards and startup logging.
type SecurityReport struct {
	GeneratedAt    time.Time         `json:"generated_at"`
	AccessTTL      time.Duration     `json:"access_ttl"`
	RefreshTTL     time.Duration     `json:"refresh_ttl"`
	Leeway         time.Duration     `json:"leeway"`
	RateLimiting   bool              `json:"rate_limiting"`
	AuditEnabled   bool              `json:"audit_enabled"`
	AuditDropped   uint64            `json:"audit_dropped"`
	MetricsEnabled bool              `json:"metrics_enabled"`
	SharedStores   bool              `json:"shared_stores"`
	Findings       []SecurityFinding `json:"findings"`
}

// SecurityReport inspects the live configuration and returns posture
// findings. It never mutates state and is safe to call on every scrape.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{GeneratedAt: time.Now().UTC()}
	}

	report := SecurityReport{
		GeneratedAt:    time.Now().UTC(),
		AccessTTL:      e.config.Token.AccessTTL,
		RefreshTTL:     e.config.Token.RefreshTTL,
		Leeway:         e.config.Token.Leeway,
		RateLimiting:   e.config.RateLimit.Enabled,
		AuditEnabled:   e.config.Audit.Enabled,
		AuditDropped:   e.AuditDropped(),
		MetricsEnabled: e.config.MetricsEnabled,
		SharedStores:   e.sharedBackend,
	}

	if e.config.Token.AccessTTL > time.Hour {
		report.Findings = append(report.Findings, SecurityFinding{
			Severity: "warning",
			Area:     "token",
			Message:  "access token lifetime exceeds one hour",
		})
	}
	if e.config.Token.Leeway > time.Minute {
		report.Findings = append(report.Findings, SecurityFinding{
			Severity: "info",
			Area:     "token",
			Message:  "clock leeway above one minute widens the replay window",
		})
	}
	if !e.config.RateLimit.Enabled {
		report.Findings = append(report.Findings, SecurityFinding{
			Severity: "warning",
			Area:     "middleware",
			Message:  "rate limiting disabled",
		})
	}
	if !report.SharedStores {
		report.Findings = append(report.Findings, SecurityFinding{
			Severity: "info",
			Area:     "storage",
			Message:  "in-process stores: revocations do not propagate across instances",
		})
	}
	if e.sessions == nil {
		report.Findings = append(report.Findings, SecurityFinding{
			Severity: "info",
			Area:     "session",
			Message:  "no session store: bulk revocation and session liveness checks unavailable",
		})
	}
	if n := report.AuditDropped; n > 0 {
		report.Findings = append(report.Findings, SecurityFinding{
			Severity: "warning",
			Area:     "audit",
			Message:  "audit events dropped under backpressure",
		})
	}
	// The CSRF token is an HMAC of the session id alone, with no expiry
	// or rotation. A leaked token stays valid for the session's lifetime.
	if len(e.config.CSRFSecret) > 0 {
		report.Findings = append(report.Findings, SecurityFinding{
			Severity: "info",
			Area:     "csrf",
			Message:  "csrf tokens are session-scoped and do not rotate within a session",
		})
	}

	return report
}
