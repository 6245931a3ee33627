package ratelimit

import (
	"context"
	"sync"
	"time"
)

// EnrollmentLimiter implements Limiter with an in-memory sliding window log,
// one bucket per tenant. It is scoped to a single gateway replica: under
// gateway.Config.StoreBackend=="redis" a tenant's attempts are counted
// separately on each replica, so AttemptsPerWindow is effectively multiplied
// by the replica count. That's an acceptable loosening for an abuse
// deterrent, not a hard security boundary the way session/approval state is.
type EnrollmentLimiter struct {
	config Config

	mu      sync.Mutex
	tenants map[string]*tenantAttempts

	cleanupInterval time.Duration
	done            chan struct{}
	wg              sync.WaitGroup
}

// tenantAttempts holds the enrollment attempt timestamps for one tenant.
type tenantAttempts struct {
	timestamps []time.Time
}

// NewEnrollmentLimiter starts a background goroutine that evicts tenants
// with no recent attempts, so a burst of one-off enrollment attempts from
// many tenants doesn't grow the map without bound. Call Close to stop it.
func NewEnrollmentLimiter(cfg Config) (*EnrollmentLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &EnrollmentLimiter{
		config:          cfg,
		tenants:         make(map[string]*tenantAttempts),
		cleanupInterval: 10 * time.Minute,
		done:            make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m, nil
}

// NewEnrollmentLimiterWithCleanup is NewEnrollmentLimiter with an explicit
// cleanup interval, for tests that don't want to wait 10 minutes.
func NewEnrollmentLimiterWithCleanup(cfg Config, cleanupInterval time.Duration) (*EnrollmentLimiter, error) {
	m, err := NewEnrollmentLimiter(cfg)
	if err != nil {
		return nil, err
	}
	m.cleanupInterval = cleanupInterval
	return m, nil
}

// Allow counts tenantID's attempts in the trailing Window and admits the
// request iff that count is below AttemptsPerWindow.
func (m *EnrollmentLimiter) Allow(ctx context.Context, tenantID string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-m.config.Window)

	t, exists := m.tenants[tenantID]
	if !exists {
		t = &tenantAttempts{timestamps: make([]time.Time, 0, m.config.AttemptsPerWindow)}
		m.tenants[tenantID] = t
	}

	t.timestamps = filterValid(t.timestamps, windowStart)

	if len(t.timestamps) >= m.config.AttemptsPerWindow {
		oldest := t.timestamps[0]
		retryAfter := oldest.Add(m.config.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}

	t.timestamps = append(t.timestamps, now)
	return true, 0, nil
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (m *EnrollmentLimiter) Close() error {
	select {
	case <-m.done:
		return nil
	default:
		close(m.done)
	}
	m.wg.Wait()
	return nil
}

func (m *EnrollmentLimiter) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *EnrollmentLimiter) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-m.config.Window)

	for tenantID, t := range m.tenants {
		t.timestamps = filterValid(t.timestamps, windowStart)
		if len(t.timestamps) == 0 {
			delete(m.tenants, tenantID)
		}
	}
}

// filterValid returns only timestamps after cutoff, reusing the backing
// array since the input slice is never read again after this call.
func filterValid(timestamps []time.Time, cutoff time.Time) []time.Time {
	valid := timestamps[:0]
	for _, t := range timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}

// TenantCount reports how many tenants currently have tracked attempts, for
// operational visibility rather than the admission path itself.
func (m *EnrollmentLimiter) TenantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tenants)
}
