// Security regression tests for enrollment rate limiting.
// These tests verify security boundaries beyond functional correctness:
// - Concurrent access respects limits (race condition prevention)
// - Memory exhaustion prevention with cleanup
// - Fail-open behavior is consistent
// - Configuration validation rejects invalid values
// - Window boundary handling is secure

package ratelimit

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ============================================================================
// Concurrent Request Security Tests
// ============================================================================

// TestSecurity_ConcurrentAttemptsRespectLimits verifies that concurrent
// enrollment attempts respect the limit. Security-critical: 100 concurrent
// attempts with a limit of 10 should allow exactly 10, never more — a race
// here would let a brute-forcing caller exceed the throttle entirely.
func TestSecurity_ConcurrentAttemptsRespectLimits(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		AttemptsPerWindow: 10,
		Window:            time.Minute,
	}

	limiter, err := NewEnrollmentLimiter(cfg)
	if err != nil {
		t.Fatalf("NewEnrollmentLimiter failed: %v", err)
	}
	defer limiter.Close()

	const totalAttempts = 100
	const expectedAllowed = 10

	var wg sync.WaitGroup
	var allowedCount int64

	for i := 0; i < totalAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _, err := limiter.Allow(ctx, "acme")
			if err != nil {
				t.Errorf("concurrent Allow returned error: %v", err)
				return
			}
			if allowed {
				atomic.AddInt64(&allowedCount, 1)
			}
		}()
	}

	wg.Wait()

	if allowedCount != expectedAllowed {
		t.Errorf("SECURITY VIOLATION: expected exactly %d allowed attempts, got %d (race condition may exist)",
			expectedAllowed, allowedCount)
	}
}

// TestSecurity_ConcurrentTenantsAreIsolated verifies that concurrent
// enrollment attempts against different tenants are independently throttled:
// a caller hammering tenant A's enrollment endpoint must not exhaust tenant
// B's budget.
func TestSecurity_ConcurrentTenantsAreIsolated(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		AttemptsPerWindow: 5,
		Window:            time.Minute,
	}

	limiter, err := NewEnrollmentLimiter(cfg)
	if err != nil {
		t.Fatalf("NewEnrollmentLimiter failed: %v", err)
	}
	defer limiter.Close()

	const numTenants = 10
	const attemptsPerTenant = 20
	const expectedAllowedPerTenant = 5

	var wg sync.WaitGroup
	allowedPerTenant := make([]int64, numTenants)

	for tIdx := 0; tIdx < numTenants; tIdx++ {
		for aIdx := 0; aIdx < attemptsPerTenant; aIdx++ {
			wg.Add(1)
			go func(tenant int) {
				defer wg.Done()
				tenantID := string(rune('A' + tenant))
				allowed, _, err := limiter.Allow(ctx, tenantID)
				if err != nil {
					t.Errorf("concurrent Allow returned error: %v", err)
					return
				}
				if allowed {
					atomic.AddInt64(&allowedPerTenant[tenant], 1)
				}
			}(tIdx)
		}
	}

	wg.Wait()

	for i, allowed := range allowedPerTenant {
		if allowed != int64(expectedAllowedPerTenant) {
			t.Errorf("SECURITY VIOLATION: tenant %c expected exactly %d allowed, got %d (tenants not isolated)",
				rune('A'+i), expectedAllowedPerTenant, allowed)
		}
	}
}

// ============================================================================
// Memory Exhaustion Prevention Tests
// ============================================================================

// TestSecurity_MemoryBoundedWithManyTenants verifies that a burst of
// one-off enrollment attempts from many distinct tenant IDs doesn't exhaust
// memory: the cleanup goroutine must remove idle tenants.
func TestSecurity_MemoryBoundedWithManyTenants(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		AttemptsPerWindow: 1,
		Window:            50 * time.Millisecond,
	}

	limiter, err := NewEnrollmentLimiterWithCleanup(cfg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewEnrollmentLimiterWithCleanup failed: %v", err)
	}
	defer limiter.Close()

	var mBefore runtime.MemStats
	runtime.ReadMemStats(&mBefore)

	const numTenants = 10000
	for i := 0; i < numTenants; i++ {
		tenantID := string(rune(i))
		limiter.Allow(ctx, tenantID)
	}

	if got := limiter.TenantCount(); got < numTenants/2 {
		t.Errorf("expected at least %d tracked tenants, got %d", numTenants/2, got)
	}

	time.Sleep(200 * time.Millisecond)

	if got := limiter.TenantCount(); got > numTenants/10 {
		t.Errorf("SECURITY CONCERN: cleanup not working - expected most tenants evicted, still have %d", got)
	}

	var mAfter runtime.MemStats
	runtime.ReadMemStats(&mAfter)

	memGrowthMB := float64(mAfter.Alloc-mBefore.Alloc) / 1024 / 1024
	if memGrowthMB > 50 {
		t.Errorf("SECURITY CONCERN: excessive memory growth %.2f MB after cleanup (possible leak)", memGrowthMB)
	}
}

// TestSecurity_CleanupRemovesIdleTenants verifies cleanup goroutine behavior.
func TestSecurity_CleanupRemovesIdleTenants(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		AttemptsPerWindow: 10,
		Window:            30 * time.Millisecond,
	}

	limiter, err := NewEnrollmentLimiterWithCleanup(cfg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewEnrollmentLimiterWithCleanup failed: %v", err)
	}
	defer limiter.Close()

	tenants := []string{"acme", "globex", "initech"}
	for _, tenantID := range tenants {
		for i := 0; i < 5; i++ {
			limiter.Allow(ctx, tenantID)
		}
	}

	if got := limiter.TenantCount(); got != len(tenants) {
		t.Errorf("expected %d tracked tenants, got %d", len(tenants), got)
	}

	time.Sleep(100 * time.Millisecond)

	if got := limiter.TenantCount(); got != 0 {
		t.Errorf("SECURITY CONCERN: expected 0 tracked tenants after cleanup, got %d", got)
	}
}

// ============================================================================
// Fail-Open Behavior Tests
// ============================================================================

// mockFailingLimiter simulates internal errors for fail-open testing.
// EnrollmentLimiter never returns an error from Allow itself, but
// gateway.handleSessionNew's error branch (treated as a 5xx ConfigError, not
// a silent allow) is exercised against this contract.
type mockFailingLimiter struct {
	shouldFail bool
	failErr    error
}

func (m *mockFailingLimiter) Allow(ctx context.Context, tenantID string) (bool, time.Duration, error) {
	if m.shouldFail {
		return false, 0, m.failErr
	}
	return true, 0, nil
}

// TestSecurity_FailClosedOnLimiterError documents the gateway's policy when
// Allow itself errors: deny with a ConfigError rather than silently
// admitting the enrollment attempt, since a broken limiter is not a signal
// to drop enrollment throttling altogether.
func TestSecurity_FailClosedOnLimiterError(t *testing.T) {
	mock := &mockFailingLimiter{
		shouldFail: true,
		failErr:    context.DeadlineExceeded,
	}

	ctx := context.Background()
	allowed, _, err := mock.Allow(ctx, "acme")

	if err == nil {
		t.Fatal("expected error from failing limiter")
	}
	if allowed {
		t.Error("interface should return allowed=false alongside an error")
	}
}

// ============================================================================
// Configuration Validation Tests
// ============================================================================

// TestSecurity_RejectsZeroAttemptsPerWindow verifies that zero or negative
// AttemptsPerWindow is rejected, preventing a misconfiguration that would
// block every enrollment attempt or (if the check were inverted) allow
// unlimited ones.
func TestSecurity_RejectsZeroAttemptsPerWindow(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "zero attempts", config: Config{AttemptsPerWindow: 0, Window: time.Minute}, wantErr: true},
		{name: "negative attempts", config: Config{AttemptsPerWindow: -1, Window: time.Minute}, wantErr: true},
		{name: "valid attempts", config: Config{AttemptsPerWindow: 1, Window: time.Minute}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := NewEnrollmentLimiter(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEnrollmentLimiter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if limiter != nil {
				limiter.Close()
			}
		})
	}
}

// TestSecurity_RejectsZeroWindow verifies that zero or negative Window is rejected.
func TestSecurity_RejectsZeroWindow(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "zero window", config: Config{AttemptsPerWindow: 10, Window: 0}, wantErr: true},
		{name: "negative window", config: Config{AttemptsPerWindow: 10, Window: -time.Second}, wantErr: true},
		{name: "valid window", config: Config{AttemptsPerWindow: 10, Window: time.Second}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := NewEnrollmentLimiter(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEnrollmentLimiter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if limiter != nil {
				limiter.Close()
			}
		})
	}
}

// ============================================================================
// Window Boundary Security Tests
// ============================================================================

// TestSecurity_WindowBoundaryNoDoubleCount verifies attempts at the window
// boundary can't double-count: the sliding window must not leak extra
// attempts past AttemptsPerWindow.
func TestSecurity_WindowBoundaryNoDoubleCount(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		AttemptsPerWindow: 5,
		Window:            100 * time.Millisecond,
	}

	limiter, err := NewEnrollmentLimiter(cfg)
	if err != nil {
		t.Fatalf("NewEnrollmentLimiter failed: %v", err)
	}
	defer limiter.Close()

	tenantID := "boundary-tenant"

	for i := 0; i < 4; i++ {
		allowed, _, _ := limiter.Allow(ctx, tenantID)
		if !allowed {
			t.Errorf("attempt %d should be allowed", i+1)
		}
	}

	time.Sleep(50 * time.Millisecond)

	allowed, _, _ := limiter.Allow(ctx, tenantID)
	if !allowed {
		t.Error("5th attempt should be allowed")
	}

	allowed, _, _ = limiter.Allow(ctx, tenantID)
	if allowed {
		t.Error("SECURITY VIOLATION: 6th attempt should be denied at window boundary")
	}

	time.Sleep(60 * time.Millisecond)

	allowedCount := 0
	for i := 0; i < 5; i++ {
		allowed, _, _ := limiter.Allow(ctx, tenantID)
		if allowed {
			allowedCount++
		}
	}

	if allowedCount < 3 {
		t.Errorf("expected at least 3 attempts allowed after partial window expiry, got %d", allowedCount)
	}
}

// TestSecurity_SlidingWindowConsistent verifies the sliding window holds up
// across rapid, repeated attempts.
func TestSecurity_SlidingWindowConsistent(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		AttemptsPerWindow: 10,
		Window:            time.Second,
	}

	limiter, err := NewEnrollmentLimiter(cfg)
	if err != nil {
		t.Fatalf("NewEnrollmentLimiter failed: %v", err)
	}
	defer limiter.Close()

	tenantID := "sliding-tenant"

	for i := 0; i < 10; i++ {
		allowed, _, _ := limiter.Allow(ctx, tenantID)
		if !allowed {
			t.Errorf("attempt %d should be allowed", i+1)
		}
	}

	deniedCount := 0
	for i := 0; i < 20; i++ {
		allowed, _, _ := limiter.Allow(ctx, tenantID)
		if !allowed {
			deniedCount++
		}
	}

	if deniedCount != 20 {
		t.Errorf("SECURITY VIOLATION: expected 20 denied attempts after limit, got %d", deniedCount)
	}
}

// ============================================================================
// Tenant ID Normalization Tests
// ============================================================================

// TestSecurity_TenantIDsAreCaseSensitive verifies tenant IDs are not
// normalized: "Acme" and "acme" get separate buckets. If the gateway's own
// tenant lookup is case-insensitive elsewhere, a caller could otherwise
// double its effective enrollment budget by varying case.
func TestSecurity_TenantIDsAreCaseSensitive(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		AttemptsPerWindow: 1,
		Window:            time.Minute,
	}

	limiter, err := NewEnrollmentLimiter(cfg)
	if err != nil {
		t.Fatalf("NewEnrollmentLimiter failed: %v", err)
	}
	defer limiter.Close()

	allowed1, _, _ := limiter.Allow(ctx, "Acme")
	if !allowed1 {
		t.Error("first attempt for 'Acme' should be allowed")
	}

	allowed2, _, _ := limiter.Allow(ctx, "Acme")
	if allowed2 {
		t.Error("second attempt for 'Acme' should be denied")
	}

	allowed3, _, _ := limiter.Allow(ctx, "acme")
	if !allowed3 {
		t.Error("first attempt for 'acme' (different case) should be allowed as a separate tenant bucket")
	}

	if got := limiter.TenantCount(); got != 2 {
		t.Errorf("expected 2 tracked tenants (case-sensitive), got %d", got)
	}
}

// TestSecurity_EmptyTenantIDWorks verifies an empty tenant ID is throttled
// like any other key rather than panicking or bypassing the limit — a
// caller omitting tenant_id shouldn't get an unthrottled lane.
func TestSecurity_EmptyTenantIDWorks(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		AttemptsPerWindow: 2,
		Window:            time.Minute,
	}

	limiter, err := NewEnrollmentLimiter(cfg)
	if err != nil {
		t.Fatalf("NewEnrollmentLimiter failed: %v", err)
	}
	defer limiter.Close()

	allowed1, _, err := limiter.Allow(ctx, "")
	if err != nil {
		t.Errorf("Allow with empty tenant ID returned error: %v", err)
	}
	if !allowed1 {
		t.Error("first attempt with empty tenant ID should be allowed")
	}

	allowed2, _, _ := limiter.Allow(ctx, "")
	if !allowed2 {
		t.Error("second attempt with empty tenant ID should be allowed")
	}

	allowed3, _, _ := limiter.Allow(ctx, "")
	if allowed3 {
		t.Error("third attempt with empty tenant ID should be denied")
	}
}

// ============================================================================
// Boundary Condition Tests
// ============================================================================

// TestSecurity_ExactlyAtLimit verifies behavior when the count equals the limit.
func TestSecurity_ExactlyAtLimit(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		AttemptsPerWindow: 5,
		Window:            time.Minute,
	}

	limiter, err := NewEnrollmentLimiter(cfg)
	if err != nil {
		t.Fatalf("NewEnrollmentLimiter failed: %v", err)
	}
	defer limiter.Close()

	tenantID := "boundary"

	for i := 0; i < 5; i++ {
		allowed, _, _ := limiter.Allow(ctx, tenantID)
		if !allowed {
			t.Errorf("attempt %d of 5 should be allowed", i+1)
		}
	}

	allowed, retryAfter, _ := limiter.Allow(ctx, tenantID)
	if allowed {
		t.Error("SECURITY VIOLATION: attempt after limit should be denied")
	}
	if retryAfter <= 0 {
		t.Error("retryAfter should be positive when denied")
	}
}

// TestSecurity_RetryAfterAccurate verifies Retry-After is bounded by Window.
func TestSecurity_RetryAfterAccurate(t *testing.T) {
	ctx := context.Background()

	window := 200 * time.Millisecond
	cfg := Config{
		AttemptsPerWindow: 1,
		Window:            window,
	}

	limiter, err := NewEnrollmentLimiter(cfg)
	if err != nil {
		t.Fatalf("NewEnrollmentLimiter failed: %v", err)
	}
	defer limiter.Close()

	tenantID := "retry-tenant"

	limiter.Allow(ctx, tenantID)
	_, retryAfter, _ := limiter.Allow(ctx, tenantID)

	if retryAfter < 0 {
		t.Errorf("SECURITY CONCERN: negative retryAfter: %v", retryAfter)
	}
	if retryAfter > window {
		t.Errorf("retryAfter %v exceeds window %v", retryAfter, window)
	}
}
