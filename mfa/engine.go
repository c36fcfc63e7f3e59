package mfa

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpSecretBytes = 32

	smsCodeDigits   = 6
	emailCodeDigits = 8

	defaultSMSCodeTTL      = 5 * time.Minute
	defaultEmailCodeTTL    = 10 * time.Minute
	defaultSMSAttempts     = 3
	defaultEmailAttempts   = 5
	defaultBackupCodeCount = 10
	defaultQRSize          = 256
)

// Config holds MFA tuning parameters. Zero values take the documented
// defaults.
type Config struct {
	TOTPIssuer       string
	SMSCodeTTL       time.Duration
	EmailCodeTTL     time.Duration
	SMSMaxAttempts   int
	EmailMaxAttempts int
	BackupCodeCount  int
	QRSize           int
}

// Sender delivers a one-time code out of band.
type Sender interface {
	Send(ctx context.Context, to, code string) error
}

// TOTPSetup is the result of enrolling a user in TOTP.
type TOTPSetup struct {
	Secret      string
	URL         string
	QRPNG       []byte
	BackupCodes []string
}

// Engine orchestrates TOTP, challenge, and backup-code flows. It is
// immutable after construction and safe for concurrent use.
type Engine struct {
	config     Config
	challenges ChallengeStore
	backups    BackupStore
	sms        Sender
	email      Sender
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates an MFA engine. Senders may be nil, in which case
// challenges are still created and delivery is simply skipped (useful in
// tests and during rollout).
func NewEngine(cfg Config, challenges ChallengeStore, backups BackupStore, sms, email Sender, logger *slog.Logger) (*Engine, error) {
	if challenges == nil || backups == nil {
		return nil, errors.New("mfa: challenge and backup stores required")
	}
	if cfg.TOTPIssuer == "" {
		return nil, errors.New("mfa: totp issuer required")
	}
	if cfg.SMSCodeTTL <= 0 {
		cfg.SMSCodeTTL = defaultSMSCodeTTL
	}
	if cfg.EmailCodeTTL <= 0 {
		cfg.EmailCodeTTL = defaultEmailCodeTTL
	}
	if cfg.SMSMaxAttempts <= 0 {
		cfg.SMSMaxAttempts = defaultSMSAttempts
	}
	if cfg.EmailMaxAttempts <= 0 {
		cfg.EmailMaxAttempts = defaultEmailAttempts
	}
	if cfg.BackupCodeCount <= 0 {
		cfg.BackupCodeCount = defaultBackupCodeCount
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = defaultQRSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		config:     cfg,
		challenges: challenges,
		backups:    backups,
		sms:        sms,
		email:      email,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// SetupTOTP generates a fresh shared secret, an enrollment URL, a QR image
// of that URL, and a new pool of backup codes. Any previous backup pool is
// replaced atomically.
func (e *Engine) SetupTOTP(ctx context.Context, userID, email string) (*TOTPSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.config.TOTPIssuer,
		AccountName: email,
		SecretSize:  totpSecretBytes,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(e.config.QRSize, e.config.QRSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	codes, err := e.GenerateBackupCodes(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &TOTPSetup{
		Secret:      key.Secret(),
		URL:         key.URL(),
		QRPNG:       buf.Bytes(),
		BackupCodes: codes,
	}, nil
}

// VerifyTOTP validates a 6-digit code against the current 30-second
// window with the library's standard one-step skew.
func (e *Engine) VerifyTOTP(secret, code string) bool {
	return totp.Validate(code, secret)
}

// VerifyTOTPWindow validates a code evaluating skew adjacent windows on
// each side of the current one.
func (e *Engine) VerifyTOTPWindow(secret, code string, skew uint) bool {
	ok, err := totp.ValidateCustom(code, secret, e.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// CreateSMSChallenge issues a 6-digit code challenge with a 5-minute TTL
// and a 3-attempt budget; delivery to phone is fire-and-forget.
func (e *Engine) CreateSMSChallenge(ctx context.Context, userID, phone string) (*Challenge, error) {
	return e.createChallenge(ctx, userID, MethodSMS, phone, smsCodeDigits, e.config.SMSCodeTTL, e.config.SMSMaxAttempts, e.sms)
}

// CreateEmailChallenge issues an 8-digit code challenge with a 10-minute
// TTL and a 5-attempt budget; delivery to address is fire-and-forget.
func (e *Engine) CreateEmailChallenge(ctx context.Context, userID, address string) (*Challenge, error) {
	return e.createChallenge(ctx, userID, MethodEmail, address, emailCodeDigits, e.config.EmailCodeTTL, e.config.EmailMaxAttempts, e.email)
}

func (e *Engine) createChallenge(ctx context.Context, userID string, method Method, destination string, digits int, ttl time.Duration, maxAttempts int, sender Sender) (*Challenge, error) {
	code, err := numericCode(digits)
	if err != nil {
		return nil, err
	}

	c := &Challenge{
		ID:          uuid.NewString(),
		UserID:      userID,
		Method:      method,
		Code:        code,
		ExpiresAt:   e.now().Add(ttl),
		MaxAttempts: maxAttempts,
	}
	if err := e.challenges.Save(ctx, c, ttl); err != nil {
		return nil, err
	}

	if sender != nil {
		// Fire-and-forget: delivery failure must not fail creation.
		go func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := sender.Send(sendCtx, destination, code); err != nil {
				e.logger.Warn("mfa code delivery failed",
					slog.String("method", string(method)),
					slog.String("challenge_id", c.ID),
					slog.Any("error", err))
			}
		}()
	}

	return c, nil
}

// VerifyChallenge checks a supplied code against a pending challenge. It
// fails closed on expiry or an exhausted attempt budget, and increments
// the attempt counter before comparing, even when the code is correct,
// so concurrent guesses cannot collectively exceed the budget. A
// successful verification consumes the challenge.
func (e *Engine) VerifyChallenge(ctx context.Context, challengeID, code string) (bool, error) {
	c, err := e.challenges.Get(ctx, challengeID)
	if err != nil {
		return false, err
	}

	if e.now().After(c.ExpiresAt) {
		_ = e.challenges.Delete(ctx, challengeID)
		return false, ErrChallengeExpired
	}

	attempts, err := e.challenges.BumpAttempts(ctx, challengeID)
	if err != nil {
		return false, err
	}
	if attempts > c.MaxAttempts {
		_ = e.challenges.Delete(ctx, challengeID)
		return false, ErrChallengeAttemptsExceeded
	}

	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) != 1 {
		return false, nil
	}

	if err := e.challenges.Delete(ctx, challengeID); err != nil {
		return false, err
	}
	return true, nil
}

// GenerateBackupCodes mints a fresh pool of single-use codes and replaces
// any prior pool atomically. Only SHA-256 hashes are persisted.
func (e *Engine) GenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	codes := make([]string, 0, e.config.BackupCodeCount)
	hashes := make([][32]byte, 0, e.config.BackupCodeCount)
	for i := 0; i < e.config.BackupCodeCount; i++ {
		code, err := newBackupCode()
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, hashBackupCode(code))
	}

	if err := e.backups.Replace(ctx, userID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}

// VerifyBackupCode consumes a backup code. Each code verifies exactly
// once; a second presentation of the same code fails.
func (e *Engine) VerifyBackupCode(ctx context.Context, userID, code string) (bool, error) {
	return e.backups.Consume(ctx, userID, hashBackupCode(code))
}

// RemainingBackupCodes reports how many codes are left in the user's pool.
func (e *Engine) RemainingBackupCodes(ctx context.Context, userID string) (int, error) {
	return e.backups.Count(ctx, userID)
}

// numericCode returns a zero-padded numeric code of the given length from
// a cryptographically secure source.
func numericCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
