package aegis

import (
	"context"
	"crypto/rsa"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/flowforge-io/aegis/internal/audit"
	internalmetrics "github.com/flowforge-io/aegis/internal/metrics"
	"github.com/flowforge-io/aegis/mfa"
	"github.com/flowforge-io/aegis/rbac"
	"github.com/flowforge-io/aegis/token"
)

// Builder assembles an [Engine] from a Config plus injected
// collaborators. Every With method returns the builder for chaining;
// Build validates the combination and wires the subsystems.
type Builder struct {
	config    Config
	hasConfig bool

	signingKey *rsa.PrivateKey
	redis      redis.UniversalClient
	directory  UserDirectory
	sessions   SessionStore
	sms        SMSSender
	email      EmailSender
	sink       AuditSink
	logger     *slog.Logger
}

// NewBuilder creates a Builder with [DefaultConfig].
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig replaces the default configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	b.hasConfig = true
	return b
}

// WithSigningKey sets the RSA private key used to sign and verify tokens.
// Required.
func (b *Builder) WithSigningKey(key *rsa.PrivateKey) *Builder {
	b.signingKey = key
	return b
}

// WithRedis backs the token blacklist and MFA challenge store with the
// given client. Without it both stores are in-process and revocations do
// not propagate across instances.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserDirectory sets the external user store. Required: the rbac
// engine resolves roles through it and the refresh path re-fetches the
// subject from it.
func (b *Builder) WithUserDirectory(d UserDirectory) *Builder {
	b.directory = d
	return b
}

// WithSessionStore sets the external session store. Optional; without it
// RevokeAllUserTokens and the middleware session stage are unavailable.
func (b *Builder) WithSessionStore(s SessionStore) *Builder {
	b.sessions = s
	return b
}

// WithSMSSender sets the SMS delivery channel for MFA challenges.
func (b *Builder) WithSMSSender(s SMSSender) *Builder {
	b.sms = s
	return b
}

// WithEmailSender sets the email delivery channel for MFA challenges.
func (b *Builder) WithEmailSender(s EmailSender) *Builder {
	b.email = s
	return b
}

// WithAuditSink sets the destination for audit events. Without it events
// are silently discarded.
func (b *Builder) WithAuditSink(s AuditSink) *Builder {
	b.sink = s
	return b
}

// WithLogger sets the structured logger used for operational warnings.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithMetricsEnabled toggles the in-process counter table.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	if !b.hasConfig {
		b.config = DefaultConfig()
		b.hasConfig = true
	}
	b.config.MetricsEnabled = enabled
	return b
}

// Build validates the assembled collaborators and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	cfg := b.config
	if !b.hasConfig {
		cfg = DefaultConfig()
	}
	if b.signingKey == nil {
		return nil, errors.New("aegis: signing key required")
	}
	if b.directory == nil {
		return nil, errors.New("aegis: user directory required")
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := internalmetrics.New(internalmetrics.Config{Enabled: cfg.MetricsEnabled})

	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.sink)

	var blacklist token.Blacklist
	var challenges mfa.ChallengeStore
	if b.redis != nil {
		blacklist = token.NewRedisBlacklist(b.redis, cfg.Redis.KeyPrefix+":bl")
		challenges = mfa.NewRedisChallengeStore(b.redis, cfg.Redis.KeyPrefix+":mc")
	} else {
		blacklist = token.NewMemoryBlacklist()
		challenges = mfa.NewMemoryChallengeStore()
	}

	directory := b.directory
	resolver := func(ctx context.Context, userID string) (token.Subject, error) {
		p, err := directory.GetByID(ctx, userID)
		if err != nil {
			return token.Subject{}, err
		}
		return subjectFromPrincipal(p), nil
	}

	tokens, err := token.NewService(token.Config{
		Issuer:      cfg.Token.Issuer,
		Audience:    cfg.Token.Audience,
		MFAAudience: cfg.Token.MFAAudience,
		AccessTTL:   cfg.Token.AccessTTL,
		RefreshTTL:  cfg.Token.RefreshTTL,
		MFATTL:      cfg.Token.MFATTL,
		Leeway:      cfg.Token.Leeway,
	}, b.signingKey, blacklist, resolver)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		logger:     logger,
		metrics:    metrics,
		dispatcher: dispatcher,
		tokens:     tokens,
		directory:  directory,
		sessions:   b.sessions,

		sharedBackend: b.redis != nil,
	}

	engine.rbac = rbac.NewEngine(directoryAdapter{directory}, engine.auditDecision)

	mfaEngine, err := mfa.NewEngine(mfa.Config{
		TOTPIssuer:       cfg.MFA.TOTPIssuer,
		SMSCodeTTL:       cfg.MFA.SMSCodeTTL,
		EmailCodeTTL:     cfg.MFA.EmailCodeTTL,
		SMSMaxAttempts:   cfg.MFA.SMSMaxAttempts,
		EmailMaxAttempts: cfg.MFA.EmailMaxAttempts,
		BackupCodeCount:  cfg.MFA.BackupCodeCount,
		QRSize:           cfg.MFA.QRSize,
	}, challenges, mfa.NewMemoryBackupStore(), mfa.Sender(b.sms), mfa.Sender(b.email), logger)
	if err != nil {
		return nil, err
	}
	engine.mfa = mfaEngine

	return engine, nil
}

// directoryAdapter exposes a [UserDirectory] as an rbac.Directory. The
// rbac engine only ever needs the role list; everything else stays behind
// the directory boundary.
type directoryAdapter struct {
	d UserDirectory
}

func (a directoryAdapter) UserRoles(ctx context.Context, userID, teamID string) ([]string, error) {
	p, err := a.d.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if teamID != "" && p.TeamID != "" && p.TeamID != teamID {
		return nil, nil
	}
	if p.Role == "" {
		return nil, nil
	}
	return []string{p.Role}, nil
}

func subjectFromPrincipal(p Principal) token.Subject {
	return token.Subject{
		UserID:      p.UserID,
		Email:       p.Email,
		Role:        p.Role,
		Permissions: p.Permissions,
		TeamID:      p.TeamID,
		MFAVerified: p.MFAVerified,
	}
}
