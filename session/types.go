// Package session implements the gateway's Session Manager (component A):
// tenant enrollment verification, session token issuance, TTL validation and
// revocation.
//
// A session is created by a successful enrollment and destroyed by
// revocation or TTL expiry (default 1h). Tokens carry at least 192 bits of
// entropy and are compared in constant time; an expired session is
// indistinguishable from one that never existed, both from a caller's
// perspective and in the Store interface below.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

const (
	// DefaultTTL is the session lifetime used when none is specified.
	DefaultTTL = 1 * time.Hour

	// tokenBytes is the number of random bytes used to build a session
	// token: 24 bytes is 192 bits of entropy before base64 expansion.
	tokenBytes = 24
)

// Session is a live, authenticated agent binding: an opaque bearer token
// scoped to a tenant.
type Session struct {
	Token     string    `json:"-"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session's TTL has elapsed as of now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// newToken generates a cryptographically random, URL-safe session token with
// at least 192 bits of entropy.
func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
