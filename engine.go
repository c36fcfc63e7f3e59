package aegis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	internalaudit "github.com/flowforge-io/aegis/internal/audit"
	internalmetrics "github.com/flowforge-io/aegis/internal/metrics"
	"github.com/flowforge-io/aegis/mfa"
	"github.com/flowforge-io/aegis/rbac"
	"github.com/flowforge-io/aegis/token"
)

// Engine is the assembled authentication and authorization facade. All
// methods are safe for concurrent use; construct it with [Builder].
type Engine struct {
	config     Config
	logger     *slog.Logger
	metrics    *internalmetrics.Metrics
	dispatcher *internalaudit.Dispatcher

	tokens    *token.Service
	rbac      *rbac.Engine
	mfa       *mfa.Engine
	directory UserDirectory
	sessions  SessionStore

	sharedBackend bool
}

// Tokens exposes the underlying token service, primarily so the
// middleware chain can use the engine as its validator.
func (e *Engine) Tokens() *token.Service { return e.tokens }

// RBAC exposes the underlying authorization engine for policy and role
// administration.
func (e *Engine) RBAC() *rbac.Engine { return e.rbac }

// MFA exposes the underlying second-factor engine.
func (e *Engine) MFA() *mfa.Engine { return e.mfa }

// GenerateTokenPair resolves userID through the directory, creates a
// session record when a session store is configured, and issues a bound
// access/refresh pair. Client IP and user agent are read from ctx when
// attached with [WithClientIP] and [WithUserAgent].
func (e *Engine) GenerateTokenPair(ctx context.Context, userID, deviceID string, scope []string) (*token.Pair, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	principal, err := e.directory.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}

	ip := ClientIPFromContext(ctx)
	ua := UserAgentFromContext(ctx)
	sessionID := uuid.NewString()

	pair, err := e.tokens.GeneratePair(ctx, subjectFromPrincipal(principal), sessionID, ip, ua, deviceID, scope)
	if err != nil {
		e.logger.Error("token pair issuance failed", "user_id", userID, "error", err)
		return nil, ErrInternal
	}

	if e.sessions != nil {
		now := time.Now()
		err := e.sessions.Create(ctx, Session{
			ID:          sessionID,
			UserID:      userID,
			RefreshHash: hashToken(pair.RefreshToken),
			IP:          ip,
			UserAgent:   ua,
			DeviceID:    deviceID,
			CreatedAt:   now,
			LastUsedAt:  now,
			ExpiresAt:   now.Add(e.config.Token.RefreshTTL),
		})
		if err != nil {
			e.logger.Error("session create failed", "user_id", userID, "error", err)
			return nil, ErrInternal
		}
	}

	e.metrics.Inc(internalmetrics.MetricTokenPairIssued)
	e.audit(ctx, internalaudit.Event{
		EventType: "token.pair_issued",
		UserID:    userID,
		SessionID: sessionID,
		IP:        ip,
		UserAgent: ua,
		Allowed:   true,
	})
	return pair, nil
}

// ValidateToken validates a raw token string and returns its claims.
func (e *Engine) ValidateToken(ctx context.Context, tokenStr string) (*token.Claims, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Validate(ctx, tokenStr)
	if err != nil {
		e.metrics.Inc(internalmetrics.MetricTokenValidateFailure)
		if errors.Is(err, token.ErrBlacklisted) {
			e.metrics.Inc(internalmetrics.MetricTokenBlacklisted)
		}
		return nil, err
	}
	e.metrics.Inc(internalmetrics.MetricTokenValidateSuccess)
	return claims, nil
}

// Validate satisfies the middleware chain's token dependency. It is
// [Engine.ValidateToken] under the interface's method name.
func (e *Engine) Validate(ctx context.Context, tokenStr string) (*token.Claims, error) {
	return e.ValidateToken(ctx, tokenStr)
}

// RefreshToken rotates a refresh token into a fresh pair. The session
// record, when a store is configured, is rewritten under the same id with
// the new refresh hash.
func (e *Engine) RefreshToken(ctx context.Context, refreshToken string) (*token.Pair, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	ip := ClientIPFromContext(ctx)
	ua := UserAgentFromContext(ctx)

	pair, claims, err := e.tokens.Refresh(ctx, refreshToken, ip, ua)
	if err != nil {
		e.metrics.Inc(internalmetrics.MetricRefreshFailure)
		if errors.Is(err, token.ErrBindingMismatch) && claims != nil {
			e.metrics.Inc(internalmetrics.MetricRefreshIPMismatch)
			e.audit(ctx, internalaudit.Event{
				EventType: "token.refresh_ip_mismatch",
				UserID:    claims.UserID,
				SessionID: claims.SessionID,
				IP:        ip,
				UserAgent: ua,
				Reason:    "refresh ip pinning",
			})
		}
		return nil, err
	}

	if e.sessions != nil && claims.SessionID != "" {
		if prev, err := e.sessions.Get(ctx, claims.SessionID); err == nil {
			prev.RefreshHash = hashToken(pair.RefreshToken)
			prev.LastUsedAt = time.Now()
			prev.ExpiresAt = time.Now().Add(e.config.Token.RefreshTTL)
			if err := e.sessions.Delete(ctx, prev.ID); err == nil {
				if err := e.sessions.Create(ctx, prev); err != nil {
					e.logger.Error("session rewrite failed", "session_id", prev.ID, "error", err)
				}
			}
		}
	}

	e.metrics.Inc(internalmetrics.MetricRefreshSuccess)
	e.audit(ctx, internalaudit.Event{
		EventType: "token.refreshed",
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		IP:        ip,
		UserAgent: ua,
		Allowed:   true,
	})
	return pair, nil
}

// RevokeToken blacklists a single token through its natural expiry.
func (e *Engine) RevokeToken(ctx context.Context, tokenStr string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if err := e.tokens.Revoke(ctx, tokenStr); err != nil {
		return err
	}
	e.metrics.Inc(internalmetrics.MetricTokenRevoked)
	return nil
}

// RevokeAllUserTokens deletes every session belonging to userID. Access
// tokens already in flight expire on their own schedule; with the session
// middleware stage active they are rejected immediately. Requires a
// session store.
func (e *Engine) RevokeAllUserTokens(ctx context.Context, userID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	if e.sessions == nil {
		return 0, errors.New("aegis: session store required for bulk revocation")
	}
	n, err := e.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	e.audit(ctx, internalaudit.Event{
		EventType: "token.bulk_revoked",
		UserID:    userID,
		Allowed:   true,
		Metadata:  map[string]string{"sessions_deleted": strconv.Itoa(n)},
	})
	return n, nil
}

// GenerateMFAToken issues a short-lived token proving first-factor
// success, for use only against the MFA verification endpoints.
func (e *Engine) GenerateMFAToken(ctx context.Context, userID string) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}
	principal, err := e.directory.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}
	tok, err := e.tokens.GenerateMFA(ctx, userID, principal.Email, ClientIPFromContext(ctx), UserAgentFromContext(ctx))
	if err != nil {
		return "", ErrInternal
	}
	e.metrics.Inc(internalmetrics.MetricMFATokenIssued)
	return tok, nil
}

// PublicKey returns the verification key for external validators.
func (e *Engine) PublicKey() (token.PublicKeyInfo, error) {
	if e == nil || e.tokens == nil {
		return token.PublicKeyInfo{}, ErrEngineNotReady
	}
	return e.tokens.PublicKey()
}

// CheckAccess evaluates an access request through the rbac engine.
func (e *Engine) CheckAccess(ctx context.Context, req rbac.AccessRequest) rbac.AccessDecision {
	if e == nil || e.rbac == nil {
		return rbac.AccessDecision{Allowed: false, Reason: ErrEngineNotReady.Error()}
	}
	return e.rbac.CheckAccess(ctx, req)
}

// HasPermission reports whether userID holds permission, via role
// expansion and the wildcard rules.
func (e *Engine) HasPermission(ctx context.Context, userID, teamID, permission string) bool {
	if e == nil || e.rbac == nil {
		return false
	}
	return e.rbac.HasPermission(ctx, userID, teamID, permission)
}

// SetupTOTP enrolls userID in TOTP and regenerates their backup codes.
func (e *Engine) SetupTOTP(ctx context.Context, userID string) (*mfa.TOTPSetup, error) {
	if e == nil || e.mfa == nil {
		return nil, ErrEngineNotReady
	}
	principal, err := e.directory.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}
	setup, err := e.mfa.SetupTOTP(ctx, userID, principal.Email)
	if err != nil {
		return nil, err
	}
	e.audit(ctx, internalaudit.Event{EventType: "mfa.totp_enrolled", UserID: userID, Allowed: true})
	return setup, nil
}

// VerifyTOTP checks code against the user's shared secret.
func (e *Engine) VerifyTOTP(secret, code string) bool {
	if e == nil || e.mfa == nil {
		return false
	}
	ok := e.mfa.VerifyTOTP(secret, code)
	if ok {
		e.metrics.Inc(internalmetrics.MetricTOTPSuccess)
	} else {
		e.metrics.Inc(internalmetrics.MetricTOTPFailure)
	}
	return ok
}

// CreateSMSChallenge creates and dispatches an SMS one-time code.
func (e *Engine) CreateSMSChallenge(ctx context.Context, userID, phone string) (*mfa.Challenge, error) {
	if e == nil || e.mfa == nil {
		return nil, ErrEngineNotReady
	}
	ch, err := e.mfa.CreateSMSChallenge(ctx, userID, phone)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(internalmetrics.MetricChallengeCreated)
	return ch, nil
}

// CreateEmailChallenge creates and dispatches an email one-time code.
func (e *Engine) CreateEmailChallenge(ctx context.Context, userID, address string) (*mfa.Challenge, error) {
	if e == nil || e.mfa == nil {
		return nil, ErrEngineNotReady
	}
	ch, err := e.mfa.CreateEmailChallenge(ctx, userID, address)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(internalmetrics.MetricChallengeCreated)
	return ch, nil
}

// VerifyChallenge verifies a one-time code against a pending challenge.
func (e *Engine) VerifyChallenge(ctx context.Context, challengeID, code string) (bool, error) {
	if e == nil || e.mfa == nil {
		return false, ErrEngineNotReady
	}
	ok, err := e.mfa.VerifyChallenge(ctx, challengeID, code)
	switch {
	case errors.Is(err, mfa.ErrChallengeExpired):
		e.metrics.Inc(internalmetrics.MetricChallengeExpired)
	case errors.Is(err, mfa.ErrChallengeAttemptsExceeded):
		e.metrics.Inc(internalmetrics.MetricChallengeAttemptsExceeded)
	case err != nil:
	case ok:
		e.metrics.Inc(internalmetrics.MetricChallengeSuccess)
	default:
		e.metrics.Inc(internalmetrics.MetricChallengeFailure)
	}
	return ok, err
}

// GenerateBackupCodes replaces the user's backup pool and returns the
// plaintext codes, the only time they are visible.
func (e *Engine) GenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	if e == nil || e.mfa == nil {
		return nil, ErrEngineNotReady
	}
	codes, err := e.mfa.GenerateBackupCodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(internalmetrics.MetricBackupCodesRegenerated)
	return codes, nil
}

// VerifyBackupCode consumes a single-use backup code.
func (e *Engine) VerifyBackupCode(ctx context.Context, userID, code string) (bool, error) {
	if e == nil || e.mfa == nil {
		return false, ErrEngineNotReady
	}
	ok, err := e.mfa.VerifyBackupCode(ctx, userID, code)
	if err != nil {
		return false, err
	}
	if ok {
		e.metrics.Inc(internalmetrics.MetricBackupCodeUsed)
	} else {
		e.metrics.Inc(internalmetrics.MetricBackupCodeFailed)
	}
	return ok, nil
}

// IsLive reports whether sessionID still exists and has not expired. It
// satisfies the middleware chain's session dependency.
func (e *Engine) IsLive(ctx context.Context, sessionID string) (bool, error) {
	if e == nil || e.sessions == nil {
		return false, ErrEngineNotReady
	}
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		return false, nil
	}
	return true, nil
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return internalmetrics.Snapshot{}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live counter table, for the Prometheus exporter.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// AuditDropped reports how many audit events the dispatcher has dropped
// under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.dispatcher.Dropped()
}

// Close drains and stops the audit dispatcher. The engine must not be
// used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.dispatcher.Close()
}

// auditDecision is the rbac decision hook: it records counters and emits
// an audit event for every access decision.
func (e *Engine) auditDecision(ctx context.Context, req rbac.AccessRequest, dec rbac.AccessDecision) {
	if dec.Allowed {
		e.metrics.Inc(internalmetrics.MetricAccessAllowed)
	} else {
		e.metrics.Inc(internalmetrics.MetricAccessDenied)
	}

	e.audit(ctx, internalaudit.Event{
		EventType: "access.decision",
		UserID:    req.UserID,
		SessionID: req.SessionID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Resource:  req.Resource,
		Action:    req.Action,
		Allowed:   dec.Allowed,
		Reason:    dec.Reason,
		Policies:  dec.AppliedPolicies,
	})
}

func (e *Engine) audit(ctx context.Context, ev internalaudit.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	e.dispatcher.Emit(ctx, ev)
}

func hashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}
