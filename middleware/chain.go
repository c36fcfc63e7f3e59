package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/unrolled/secure"

	internalmetrics "github.com/flowforge-io/aegis/internal/metrics"
	"github.com/flowforge-io/aegis/rbac"
	"github.com/flowforge-io/aegis/token"
)

// TokenValidator is the authentication dependency, satisfied by
// *token.Service and by *aegis.Engine.
type TokenValidator interface {
	Validate(ctx context.Context, tokenStr string) (*token.Claims, error)
}

// AccessChecker is the authorization dependency, satisfied by
// *rbac.Engine and by *aegis.Engine.
type AccessChecker interface {
	CheckAccess(ctx context.Context, req rbac.AccessRequest) rbac.AccessDecision
}

// SessionChecker confirms a session id is live in the external store.
type SessionChecker interface {
	IsLive(ctx context.Context, sessionID string) (bool, error)
}

// SessionCheckerFunc adapts a function to SessionChecker.
type SessionCheckerFunc func(ctx context.Context, sessionID string) (bool, error)

func (f SessionCheckerFunc) IsLive(ctx context.Context, sessionID string) (bool, error) {
	return f(ctx, sessionID)
}

// Config wires the chain's dependencies and tuning.
type Config struct {
	Logger     *slog.Logger
	Tokens     TokenValidator
	Access     AccessChecker
	Sessions   SessionChecker
	CSRFSecret []byte
	RateLimit  RateLimitConfig
	IPFilter   IPFilterConfig
	Metrics    *internalmetrics.Metrics
}

// Chain is the assembled pipeline. Construct once, reuse across routes.
type Chain struct {
	logger  *slog.Logger
	tokens  TokenValidator
	access  AccessChecker
	session SessionChecker
	csrfKey []byte
	secure  *secure.Secure
	limiter *RateLimiter
	ipf     *ipFilter
	metrics *internalmetrics.Metrics

	rateLimitEnabled bool
}

// New validates cfg and builds a Chain.
func New(cfg Config) (*Chain, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("middleware: token validator required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.CSRFSecret) == 0 {
		return nil, errors.New("middleware: csrf secret required")
	}

	ipf, err := newIPFilter(cfg.IPFilter)
	if err != nil {
		return nil, err
	}

	return &Chain{
		logger:           cfg.Logger,
		tokens:           cfg.Tokens,
		access:           cfg.Access,
		session:          cfg.Sessions,
		csrfKey:          cfg.CSRFSecret,
		secure:           newSecureHeaders(),
		limiter:          NewRateLimiter(cfg.RateLimit),
		ipf:              ipf,
		metrics:          cfg.Metrics,
		rateLimitEnabled: cfg.RateLimit.Enabled,
	}, nil
}

// Limiter exposes the chain's rate limiter so an operational sweeper can
// evict idle buckets.
func (c *Chain) Limiter() *RateLimiter { return c.limiter }

// Protect assembles the full fixed-order pipeline guarding
// resource/action. Security headers wrap everything so they apply
// regardless of how any later stage decides.
func (c *Chain) Protect(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := next
		h = c.Authorize(resource, action)(h)
		h = c.ValidateSession(h)
		h = c.RequireMFA(h)
		h = c.CSRF(h)
		h = c.IPFilter(h)
		h = c.RateLimit(h)
		h = c.Authenticate(h)
		h = c.SecureHeaders(h)
		return h
	}
}

type claimsContextKey struct{}

// ClaimsFromContext returns the authenticated principal's claims attached
// by the Authenticate stage.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*token.Claims)
	return claims, ok
}

// Authenticate extracts the Bearer token, validates it, and compares the
// claim-bound IP and user-agent against the request's observed values.
// The binding check is a replay mitigation stricter than the refresh-path
// check, which pins IP only.
func (c *Chain) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := c.tokens.Validate(r.Context(), raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if claims.TokenType != token.TypeAccess {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ip := ClientIP(r)
		if claims.ClientIP != "" && claims.ClientIP != ip {
			c.inc(internalmetrics.MetricBindingMismatch)
			c.logger.Warn("token ip binding mismatch", "user_id", claims.UserID)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if claims.UserAgent != "" && claims.UserAgent != r.UserAgent() {
			c.inc(internalmetrics.MetricBindingMismatch)
			c.logger.Warn("token user-agent binding mismatch", "user_id", claims.UserID)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimit applies the global, per-IP, and per-user token buckets.
// Authenticated users receive double the per-key rate and burst.
func (c *Chain) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.rateLimitEnabled {
			next.ServeHTTP(w, r)
			return
		}

		userID := ""
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			userID = claims.UserID
		}

		if !c.limiter.Allow(ClientIP(r), userID) {
			c.inc(internalmetrics.MetricRateLimitHit)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IPFilter rejects blacklisted addresses unconditionally and, when a
// whitelist is configured, admits only whitelisted ones.
func (c *Chain) IPFilter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.ipf.allowed(ClientIP(r)) {
			c.inc(internalmetrics.MetricIPFiltered)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CSRF verifies the session-derived token on unsafe methods. Safe methods
// pass through untouched.
func (c *Chain) CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if safeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		sessionID := ""
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			sessionID = claims.SessionID
		}

		if !validCSRF(c.csrfKey, sessionID, csrfTokenFromRequest(r)) {
			c.inc(internalmetrics.MetricCSRFRejected)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireMFA rejects unless the authenticated claims mark MFA as verified.
func (c *Chain) RequireMFA(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || !claims.MFAVerified {
			writeErrorCode(w, http.StatusForbidden, "forbidden", "mfa_required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ValidateSession rejects unless the session bound to the claims is
// confirmed live by the external store. Store failures reject
// (fail-closed).
func (c *Chain) ValidateSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.session == nil {
			next.ServeHTTP(w, r)
			return
		}

		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims.SessionID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		live, err := c.session.IsLive(r.Context(), claims.SessionID)
		if err != nil || !live {
			c.inc(internalmetrics.MetricSessionRejected)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Authorize delegates the final decision to the access checker.
func (c *Chain) Authorize(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c.access == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			dec := c.access.CheckAccess(r.Context(), rbac.AccessRequest{
				UserID:    claims.UserID,
				Resource:  resource,
				Action:    action,
				TeamID:    claims.TeamID,
				IP:        ClientIP(r),
				UserAgent: r.UserAgent(),
				SessionID: claims.SessionID,
				Timestamp: time.Now(),
			})
			if !dec.Allowed {
				writeErrorCode(w, http.StatusForbidden, "forbidden", dec.Reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c *Chain) inc(id internalmetrics.MetricID) {
	c.metrics.Inc(id)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	tok := value[len(bearer):]
	if tok == "" {
		return "", false
	}
	return tok, true
}
