package aegis

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/flowforge-io/aegis/middleware"
)

// TokenConfig tunes issuance and validation of signed tokens.
type TokenConfig struct {
	Issuer      string        `envconfig:"TOKEN_ISSUER" default:"aegis"`
	Audience    string        `envconfig:"TOKEN_AUDIENCE" default:"aegis-api"`
	MFAAudience string        `envconfig:"TOKEN_MFA_AUDIENCE" default:"aegis-mfa"`
	AccessTTL   time.Duration `envconfig:"TOKEN_ACCESS_TTL" default:"15m"`
	RefreshTTL  time.Duration `envconfig:"TOKEN_REFRESH_TTL" default:"168h"`
	MFATTL      time.Duration `envconfig:"TOKEN_MFA_TTL" default:"5m"`
	Leeway      time.Duration `envconfig:"TOKEN_LEEWAY" default:"30s"`
}

// MFAConfig tunes second-factor flows.
type MFAConfig struct {
	TOTPIssuer       string        `envconfig:"MFA_TOTP_ISSUER" default:"aegis"`
	SMSCodeTTL       time.Duration `envconfig:"MFA_SMS_CODE_TTL" default:"5m"`
	EmailCodeTTL     time.Duration `envconfig:"MFA_EMAIL_CODE_TTL" default:"10m"`
	SMSMaxAttempts   int           `envconfig:"MFA_SMS_MAX_ATTEMPTS" default:"3"`
	EmailMaxAttempts int           `envconfig:"MFA_EMAIL_MAX_ATTEMPTS" default:"5"`
	BackupCodeCount  int           `envconfig:"MFA_BACKUP_CODE_COUNT" default:"10"`
	QRSize           int           `envconfig:"MFA_QR_SIZE" default:"256"`
}

// AuditConfig tunes the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `envconfig:"AUDIT_ENABLED" default:"true"`
	BufferSize int  `envconfig:"AUDIT_BUFFER_SIZE" default:"1024"`
	DropIfFull bool `envconfig:"AUDIT_DROP_IF_FULL" default:"true"`
}

// RedisConfig names the Redis deployment used for the blacklist and
// challenge stores. It is consulted only when the builder is given a
// client via WithRedis; the engine never dials Redis itself.
type RedisConfig struct {
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"aegis"`
}

// Config is the engine's complete tuning surface, one section per
// subsystem. Collaborators (keys, stores, senders) are injected through
// the [Builder], never through Config.
type Config struct {
	Token     TokenConfig
	MFA       MFAConfig
	Audit     AuditConfig
	Redis     RedisConfig
	RateLimit middleware.RateLimitConfig
	IPFilter  middleware.IPFilterConfig

	// CSRFSecret keys the per-session CSRF token derivation. Required
	// whenever the middleware chain's CSRF stage is used.
	CSRFSecret []byte `envconfig:"CSRF_SECRET"`

	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`
}

// DefaultConfig returns a Config with every field at its documented
// default.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:      "aegis",
			Audience:    "aegis-api",
			MFAAudience: "aegis-mfa",
			AccessTTL:   15 * time.Minute,
			RefreshTTL:  7 * 24 * time.Hour,
			MFATTL:      5 * time.Minute,
			Leeway:      30 * time.Second,
		},
		MFA: MFAConfig{
			TOTPIssuer:       "aegis",
			SMSCodeTTL:       5 * time.Minute,
			EmailCodeTTL:     10 * time.Minute,
			SMSMaxAttempts:   3,
			EmailMaxAttempts: 5,
			BackupCodeCount:  10,
			QRSize:           256,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Redis: RedisConfig{
			KeyPrefix: "aegis",
		},
		RateLimit: middleware.RateLimitConfig{
			Enabled:             true,
			GlobalRate:          1000,
			GlobalBurst:         2000,
			PerKeyRate:          10,
			PerKeyBurst:         20,
			AuthenticatedFactor: 2,
		},
		MetricsEnabled: true,
	}
}

// ConfigFromEnv loads Config from AEGIS_-prefixed environment variables,
// starting from [DefaultConfig] so unset variables keep their defaults.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process("AEGIS", &cfg); err != nil {
		return Config{}, fmt.Errorf("config from env: %w", err)
	}
	return cfg, nil
}
