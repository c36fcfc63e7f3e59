package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates the three token kinds. Exactly one type is stamped
// into every issued token.
type Type string

const (
	// TypeAccess is a short-lived bearer credential carrying authorization
	// claims.
	TypeAccess Type = "access"
	// TypeRefresh is a long-lived credential exchangeable for a new pair.
	TypeRefresh Type = "refresh"
	// TypeMFA is the intermediate credential issued between password check
	// and MFA completion.
	TypeMFA Type = "mfa"
)

// Subject is the identity snapshot stamped into access tokens. It is a
// read-only projection of the directory's principal record.
type Subject struct {
	UserID      string
	Email       string
	Role        string
	Permissions []string
	TeamID      string
	MFAVerified bool
}

// Claims is the full claim set carried by aegis tokens. Access tokens
// populate everything; refresh tokens omit role and permissions by design
// so a leaked refresh token never doubles as an authorization artifact.
type Claims struct {
	UserID      string   `json:"uid"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	TeamID      string   `json:"team,omitempty"`
	SessionID   string   `json:"sid,omitempty"`
	TokenType   Type     `json:"typ"`
	MFAVerified bool     `json:"mfa,omitempty"`
	ClientIP    string   `json:"ip,omitempty"`
	UserAgent   string   `json:"ua,omitempty"`
	DeviceID    string   `json:"did,omitempty"`
	Scope       []string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Pair is an access/refresh token pair created together at login or
// refresh. It is immutable; it is destroyed only by blacklisting its
// constituent tokens.
type Pair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	ExpiresAt    time.Time
	Scope        []string
}

// PublicKeyInfo is the interchange form of the verification key for
// external verifiers.
type PublicKeyInfo struct {
	KeyID     string
	Algorithm string
	Use       string
	PEM       string
}
