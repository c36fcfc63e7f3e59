package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey *rsa.PrivateKey

func init() {
	var err error
	testKey, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
}

func testConfig() Config {
	return Config{
		Issuer:      "aegis-test",
		Audience:    "aegis-api",
		MFAAudience: "aegis-mfa",
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(testConfig(), testKey, NewMemoryBlacklist(), nil)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc
}

func testSubject() Subject {
	return Subject{
		UserID:      "user-1",
		Email:       "alice@example.com",
		Role:        "editor",
		Permissions: []string{"workflows.read", "workflows.write"},
		TeamID:      "team-a",
		MFAVerified: true,
	}
}

func TestGeneratePairRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	pair, err := svc.GeneratePair(ctx, testSubject(), "sess-1", "10.0.0.1", "test-agent", "device-1", []string{"api"})
	if err != nil {
		t.Fatalf("GeneratePair error: %v", err)
	}
	if pair.TokenType != "Bearer" {
		t.Fatalf("unexpected token type: %s", pair.TokenType)
	}
	if pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expires_in: %d", pair.ExpiresIn)
	}

	claims, err := svc.Validate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if claims.UserID != "user-1" || claims.SessionID != "sess-1" || claims.TeamID != "team-a" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.TokenType != TypeAccess {
		t.Fatalf("expected access type, got %s", claims.TokenType)
	}
	if !claims.MFAVerified {
		t.Fatal("expected mfa_verified claim")
	}
	if len(claims.Scope) != 1 || claims.Scope[0] != "api" {
		t.Fatalf("scope mismatch: %v", claims.Scope)
	}

	refresh, err := svc.Validate(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Validate refresh error: %v", err)
	}
	if refresh.TokenType != TypeRefresh {
		t.Fatalf("expected refresh type, got %s", refresh.TokenType)
	}
	if refresh.Role != "" || len(refresh.Permissions) != 0 {
		t.Fatalf("refresh token must carry no role or permissions: %+v", refresh)
	}
}

func TestSignatureCarriesKeyID(t *testing.T) {
	svc := newTestService(t)

	pair, err := svc.GeneratePair(context.Background(), testSubject(), "sess-1", "", "", "", nil)
	if err != nil {
		t.Fatalf("GeneratePair error: %v", err)
	}

	parts := strings.Split(pair.AccessToken, ".")
	if len(parts) != 3 {
		t.Fatalf("expected compact JWS, got %d segments", len(parts))
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(pair.AccessToken, &Claims{})
	if err != nil {
		t.Fatalf("ParseUnverified error: %v", err)
	}
	kid, _ := parsed.Header["kid"].(string)
	if kid == "" || kid != svc.KeyID() {
		t.Fatalf("kid header mismatch: %q vs %q", kid, svc.KeyID())
	}
	if alg, _ := parsed.Header["alg"].(string); alg != "RS256" {
		t.Fatalf("unexpected alg: %s", alg)
	}
}

func TestValidateRejectsMissingKeyID(t *testing.T) {
	svc := newTestService(t)

	// Signed with the right key but no kid header. Every self-issued token
	// carries one, so its absence is a hard rejection.
	claims := Claims{
		UserID:    "user-1",
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "aegis-test",
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{"aegis-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	bare, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(testKey)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Validate(context.Background(), bare); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for kid-less token, got %v", err)
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	svc := newTestService(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	other, err := NewService(testConfig(), otherKey, NewMemoryBlacklist(), nil)
	if err != nil {
		t.Fatal(err)
	}

	pair, err := other.GeneratePair(context.Background(), testSubject(), "sess-1", "", "", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Validate(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := newTestService(t)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	pair, err := svc.GeneratePair(context.Background(), testSubject(), "sess-1", "", "", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	svc.now = time.Now
	if _, err := svc.Validate(context.Background(), pair.AccessToken); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRevokeBlacklists(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	pair, err := svc.GeneratePair(ctx, testSubject(), "sess-1", "", "", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Revoke(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if _, err := svc.Validate(ctx, pair.AccessToken); !errors.Is(err, ErrBlacklisted) {
		t.Fatalf("expected ErrBlacklisted, got %v", err)
	}

	// Revoking again is a no-op, not an error.
	if err := svc.Revoke(ctx, pair.AccessToken); err != nil {
		t.Fatalf("second Revoke error: %v", err)
	}
}

func TestRefreshRotates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	pair, err := svc.GeneratePair(ctx, testSubject(), "sess-1", "10.0.0.1", "agent-a", "device-1", []string{"api"})
	if err != nil {
		t.Fatal(err)
	}

	// A different user agent is accepted on refresh; only the IP is pinned.
	next, consumed, err := svc.Refresh(ctx, pair.RefreshToken, "10.0.0.1", "agent-b")
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if consumed == nil || consumed.SessionID != "sess-1" {
		t.Fatalf("expected consumed refresh claims, got %+v", consumed)
	}

	claims, err := svc.Validate(ctx, next.AccessToken)
	if err != nil {
		t.Fatalf("Validate new access error: %v", err)
	}
	if claims.SessionID != "sess-1" || claims.DeviceID != "device-1" {
		t.Fatalf("session continuity lost: %+v", claims)
	}

	// The consumed refresh token is gone.
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken, "10.0.0.1", "agent-a"); !errors.Is(err, ErrBlacklisted) {
		t.Fatalf("expected ErrBlacklisted on reuse, got %v", err)
	}
}

func TestRefreshRejectsIPMismatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	pair, err := svc.GeneratePair(ctx, testSubject(), "sess-1", "10.0.0.1", "agent-a", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	// The rejection still surfaces the decoded claims for attribution.
	_, consumed, err := svc.Refresh(ctx, pair.RefreshToken, "10.0.0.2", "agent-a")
	if !errors.Is(err, ErrBindingMismatch) {
		t.Fatalf("expected ErrBindingMismatch, got %v", err)
	}
	if consumed == nil || consumed.UserID != "user-1" {
		t.Fatalf("expected claims alongside pinning rejection, got %+v", consumed)
	}

	// The rejected token was not consumed.
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken, "10.0.0.1", "agent-a"); err != nil {
		t.Fatalf("expected refresh from original IP to succeed, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	pair, err := svc.GeneratePair(ctx, testSubject(), "sess-1", "10.0.0.1", "", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.Refresh(ctx, pair.AccessToken, "10.0.0.1", ""); !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
}

func TestRefreshResolvesFreshSubject(t *testing.T) {
	resolver := func(_ context.Context, userID string) (Subject, error) {
		return Subject{UserID: userID, Email: "alice@example.com", Role: "admin", Permissions: []string{"system.admin"}}, nil
	}
	svc, err := NewService(testConfig(), testKey, NewMemoryBlacklist(), resolver)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	pair, err := svc.GeneratePair(ctx, testSubject(), "sess-1", "10.0.0.1", "", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	next, _, err := svc.Refresh(ctx, pair.RefreshToken, "10.0.0.1", "")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.Validate(ctx, next.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Role != "admin" {
		t.Fatalf("expected refreshed role from resolver, got %q", claims.Role)
	}
}

func TestMFATokenAudience(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tok, err := svc.GenerateMFA(ctx, "user-1", "alice@example.com", "10.0.0.1", "agent-a")
	if err != nil {
		t.Fatalf("GenerateMFA error: %v", err)
	}

	claims, err := svc.Validate(ctx, tok)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if claims.TokenType != TypeMFA {
		t.Fatalf("expected mfa type, got %s", claims.TokenType)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "aegis-mfa" {
		t.Fatalf("unexpected audience: %v", claims.Audience)
	}
	if claims.Role != "" || len(claims.Permissions) != 0 {
		t.Fatalf("mfa token must carry no role or permissions: %+v", claims)
	}
}

func TestPublicKeyInfo(t *testing.T) {
	svc := newTestService(t)

	info, err := svc.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey error: %v", err)
	}
	if info.KeyID != svc.KeyID() || info.Algorithm != "RS256" || info.Use != "sig" {
		t.Fatalf("unexpected key info: %+v", info)
	}
	if !strings.HasPrefix(info.PEM, "-----BEGIN PUBLIC KEY-----") {
		t.Fatalf("expected PKIX PEM, got %q", info.PEM)
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(testConfig(), nil, NewMemoryBlacklist(), nil); err == nil {
		t.Fatal("expected error for missing key")
	}
	if _, err := NewService(testConfig(), testKey, nil, nil); err == nil {
		t.Fatal("expected error for missing blacklist")
	}

	cfg := testConfig()
	cfg.Leeway = 5 * time.Minute
	if _, err := NewService(cfg, testKey, NewMemoryBlacklist(), nil); err == nil {
		t.Fatal("expected error for excessive leeway")
	}
}

type countingBlacklist struct {
	*MemoryBlacklist
	checks int
}

func (b *countingBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	b.checks++
	return b.MemoryBlacklist.IsBlacklisted(ctx, token)
}

func TestRefreshConsultsBlacklistOnce(t *testing.T) {
	bl := &countingBlacklist{MemoryBlacklist: NewMemoryBlacklist()}
	svc, err := NewService(testConfig(), testKey, bl, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	pair, err := svc.GeneratePair(ctx, testSubject(), "sess-1", "10.0.0.1", "", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	bl.checks = 0
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken, "10.0.0.1", ""); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if bl.checks != 1 {
		t.Fatalf("expected a single blacklist lookup per refresh, got %d", bl.checks)
	}
}
