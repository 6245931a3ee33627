package session

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"
)

// Manager verifies tenant enrollment and issues, validates and revokes
// session tokens. It owns the session table; all access goes through the
// methods below, which apply the discipline the spec requires: constant-time
// digest and token comparisons, and a validate path that cannot distinguish
// an unknown token from an expired one.
type Manager struct {
	store Backend

	mu          sync.RWMutex
	enrollments map[string][]byte // tenant_id -> sha256 digest of shared secret

	now func() time.Time
}

// NewManager creates a Manager seeded with the given enrollment digests
// (tenant_id -> hex-encoded sha256 digest, as loaded from the enrollments
// config file), backed by the default in-memory Store.
func NewManager(enrollmentDigestsHex map[string]string) (*Manager, error) {
	return NewManagerWithBackend(enrollmentDigestsHex, NewStore())
}

// NewManagerWithBackend is NewManager with an explicit Backend, letting the
// caller substitute RedisBackend for multi-replica deployments.
func NewManagerWithBackend(enrollmentDigestsHex map[string]string, backend Backend) (*Manager, error) {
	m := &Manager{
		store:       backend,
		enrollments: make(map[string][]byte, len(enrollmentDigestsHex)),
		now:         time.Now,
	}
	for tenant, digestHex := range enrollmentDigestsHex {
		digest, err := hex.DecodeString(digestHex)
		if err != nil {
			return nil, err
		}
		m.enrollments[tenant] = digest
	}
	return m, nil
}

// VerifyEnrollment checks secret against the stored digest for tenant using
// a constant-time comparison. Unknown tenants always return false; the
// comparison still runs against a fixed-size placeholder so the code path
// takes the same time whether or not the tenant exists.
func (m *Manager) VerifyEnrollment(tenant, secret string) bool {
	m.mu.RLock()
	digest, ok := m.enrollments[tenant]
	m.mu.RUnlock()

	sum := sha256.Sum256([]byte(secret))
	if !ok {
		// Compare against a zero digest so the call shape (and its timing)
		// doesn't depend on tenant existence.
		var zero [sha256.Size]byte
		subtle.ConstantTimeCompare(sum[:], zero[:])
		return false
	}
	return subtle.ConstantTimeCompare(sum[:], digest) == 1
}

// CreateSession mints a new session for tenant with the given TTL (DefaultTTL
// if ttl is zero) and records it.
func (m *Manager) CreateSession(tenant string, ttl time.Duration) (*Session, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	now := m.now()
	sess := &Session{
		Token:     token,
		TenantID:  tenant,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	m.store.Put(sess)
	return sess, nil
}

// ValidateToken returns the session for token if it exists and is not
// expired. An expired entry is evicted on access. Both "never existed" and
// "expired" return (nil, false): callers cannot distinguish the two.
func (m *Manager) ValidateToken(token string) (*Session, bool) {
	sess, ok := m.store.Get(token)
	if !ok {
		return nil, false
	}
	if sess.Expired(m.now()) {
		m.store.Delete(token)
		return nil, false
	}
	return sess, true
}

// Revoke removes a session unconditionally, returning whether it had existed.
func (m *Manager) Revoke(token string) bool {
	_, existed := m.store.Get(token)
	m.store.Delete(token)
	return existed
}

// SweepExpired evicts every expired session and returns the count removed.
// Intended to be called periodically by a background loop owned by the
// process that constructs the Manager.
func (m *Manager) SweepExpired() int {
	return m.store.Sweep(m.now)
}
