package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

const (
	// CSRFHeader is the request header carrying the CSRF token.
	CSRFHeader = "X-CSRF-Token"
	// CSRFFormField is the fallback form field carrying the CSRF token.
	CSRFFormField = "csrf_token"
)

// CSRFToken derives the token for a session. The derivation is
// deterministic from the session id and the shared secret alone; there is
// no independent server-side nonce. That mirrors the deployed behavior
// this package preserves; a stronger scheme would store a random
// per-session nonce server-side.
func CSRFToken(secret []byte, sessionID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// safeMethod reports whether the request method needs no CSRF check.
func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// csrfTokenFromRequest extracts the supplied token, header first.
func csrfTokenFromRequest(r *http.Request) string {
	if t := r.Header.Get(CSRFHeader); t != "" {
		return t
	}
	return r.PostFormValue(CSRFFormField)
}

// validCSRF compares supplied against the session-derived token in
// constant time.
func validCSRF(secret []byte, sessionID, supplied string) bool {
	if supplied == "" || sessionID == "" {
		return false
	}
	expected := CSRFToken(secret, sessionID)
	return hmac.Equal([]byte(expected), []byte(supplied))
}
