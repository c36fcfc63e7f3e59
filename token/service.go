package token

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultMFATTL     = 5 * time.Minute

	signingAlgorithm = "RS256"
)

// Config holds token service tuning parameters. Audience and MFAAudience
// are distinct on purpose: an mfa-step token must never satisfy an
// ordinary-audience check.
type Config struct {
	Issuer      string
	Audience    string
	MFAAudience string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	MFATTL      time.Duration
	Leeway      time.Duration
}

// SubjectResolver re-fetches a subject snapshot by user id. The refresh
// path uses it so freshly issued access tokens carry current role and
// permission claims rather than the ones captured at the previous login.
type SubjectResolver func(ctx context.Context, userID string) (Subject, error)

// Service issues, validates, refreshes, and revokes signed token pairs.
// It is immutable after construction and safe for concurrent use.
type Service struct {
	config     Config
	privateKey *rsa.PrivateKey
	keyID      string
	blacklist  Blacklist
	resolve    SubjectResolver
	now        func() time.Time
}

// NewService creates a token Service signing with key. The blacklist is
// consulted on every validation; resolver may be nil, in which case
// refreshed access tokens carry only the identity captured in the refresh
// token.
func NewService(cfg Config, key *rsa.PrivateKey, blacklist Blacklist, resolver SubjectResolver) (*Service, error) {
	if key == nil {
		return nil, errors.New("token: signing key required")
	}
	if blacklist == nil {
		return nil, errors.New("token: blacklist required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("token: issuer required")
	}
	if cfg.Audience == "" || cfg.MFAAudience == "" {
		return nil, errors.New("token: audience and mfa audience required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.MFATTL <= 0 {
		cfg.MFATTL = defaultMFATTL
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}

	kid, err := deriveKeyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	return &Service{
		config:     cfg,
		privateKey: key,
		keyID:      kid,
		blacklist:  blacklist,
		resolve:    resolver,
		now:        time.Now,
	}, nil
}

// KeyID returns the kid stamped into every signature header.
func (s *Service) KeyID() string { return s.keyID }

// GeneratePair issues an access/refresh pair for sub, bound to the given
// session, client, and scope. The refresh token deliberately carries no
// role or permission claims.
func (s *Service) GeneratePair(_ context.Context, sub Subject, sessionID, ip, userAgent, deviceID string, scope []string) (*Pair, error) {
	now := s.now()
	accessExpiry := now.Add(s.config.AccessTTL)

	access := Claims{
		UserID:      sub.UserID,
		Email:       sub.Email,
		Role:        sub.Role,
		Permissions: sub.Permissions,
		TeamID:      sub.TeamID,
		SessionID:   sessionID,
		TokenType:   TypeAccess,
		MFAVerified: sub.MFAVerified,
		ClientIP:    ip,
		UserAgent:   userAgent,
		DeviceID:    deviceID,
		Scope:       scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   sub.UserID,
			Audience:  jwt.ClaimStrings{s.config.Audience},
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	refresh := Claims{
		UserID:    sub.UserID,
		Email:     sub.Email,
		SessionID: sessionID,
		TokenType: TypeRefresh,
		ClientIP:  ip,
		DeviceID:  deviceID,
		Scope:     scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   sub.UserID,
			Audience:  jwt.ClaimStrings{s.config.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.RefreshTTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	accessToken, err := s.sign(access)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.sign(refresh)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.config.AccessTTL.Seconds()),
		ExpiresAt:    accessExpiry,
		Scope:        scope,
	}, nil
}

// GenerateMFA issues a short-lived token of type mfa carrying no role or
// permission claims. It is accepted only against the MFA audience.
func (s *Service) GenerateMFA(_ context.Context, userID, email, ip, userAgent string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:    userID,
		Email:     email,
		TokenType: TypeMFA,
		ClientIP:  ip,
		UserAgent: userAgent,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{s.config.MFAAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.MFATTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return s.sign(claims)
}

// Validate checks the blacklist, verifies the signature against the
// service key, and enforces exp, nbf, issuer, and the audience matching
// the token's purpose. It returns the decoded claims on success.
func (s *Service) Validate(ctx context.Context, tokenStr string) (*Claims, error) {
	revoked, err := s.blacklist.IsBlacklisted(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrBlacklisted
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingAlgorithm}),
		jwt.WithIssuer(s.config.Issuer),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != signingAlgorithm {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != s.keyID {
			return nil, errors.New("unknown kid")
		}
		return &s.privateKey.PublicKey, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}

	expected := s.config.Audience
	if claims.TokenType == TypeMFA {
		expected = s.config.MFAAudience
	}
	if !containsAudience(claims.Audience, expected) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalid)
	}

	return claims, nil
}

// Refresh validates refreshToken, enforces strict IP pinning against the
// IP bound at issuance, blacklists the consumed token (rotation-on-use),
// and issues a new pair bound to the same session, device, and scope. The
// consumed token's claims are returned whenever the token decoded, even
// when pinning or the type check failed, so callers can attribute the
// rejection without re-parsing.
//
// The user agent is intentionally not re-checked here; the middleware's
// request-authentication stage checks both IP and UA on access tokens.
func (s *Service) Refresh(ctx context.Context, refreshToken, ip, userAgent string) (*Pair, *Claims, error) {
	claims, err := s.Validate(ctx, refreshToken)
	if err != nil {
		return nil, nil, err
	}
	if claims.TokenType != TypeRefresh {
		return nil, claims, ErrWrongType
	}
	if claims.ClientIP != ip {
		return nil, claims, fmt.Errorf("%w: refresh ip pinning", ErrBindingMismatch)
	}

	if err := s.blacklist.Add(ctx, refreshToken, claims.ExpiresAt.Time); err != nil {
		return nil, claims, err
	}

	sub := Subject{UserID: claims.UserID, Email: claims.Email}
	if s.resolve != nil {
		sub, err = s.resolve(ctx, claims.UserID)
		if err != nil {
			return nil, claims, err
		}
	}

	pair, err := s.GeneratePair(ctx, sub, claims.SessionID, ip, userAgent, claims.DeviceID, claims.Scope)
	if err != nil {
		return nil, claims, err
	}
	return pair, claims, nil
}

// Revoke blacklists tokenStr through its natural expiry, bounding
// blacklist growth to the token's lifetime. Revoking an already expired
// token is a no-op.
func (s *Service) Revoke(ctx context.Context, tokenStr string) error {
	claims, err := s.Validate(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, ErrExpired) || errors.Is(err, ErrBlacklisted) {
			return nil
		}
		return err
	}
	return s.blacklist.Add(ctx, tokenStr, claims.ExpiresAt.Time)
}

// PublicKey returns the verification key as PEM-encoded
// SubjectPublicKeyInfo, tagged with the signing algorithm and intended use.
func (s *Service) PublicKey() (PublicKeyInfo, error) {
	der, err := x509.MarshalPKIXPublicKey(&s.privateKey.PublicKey)
	if err != nil {
		return PublicKeyInfo{}, err
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return PublicKeyInfo{
		KeyID:     s.keyID,
		Algorithm: signingAlgorithm,
		Use:       "sig",
		PEM:       string(block),
	}, nil
}

func (s *Service) sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.keyID

	signed, err := t.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return signed, nil
}

func deriveKeyID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:8]), nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	default:
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
}

func containsAudience(aud jwt.ClaimStrings, expected string) bool {
	for _, a := range aud {
		if a == expected {
			return true
		}
	}
	return false
}
