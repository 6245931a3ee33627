package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is the Backend implementation for operators running more
// than one gateway replica: sessions live in Redis instead of a single
// process's memory, so a token issued by one replica validates on another.
// It is a best-effort shared cache, not a consensus store — there is no
// coordination beyond what Redis itself provides.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend dials addr (a host:port) and pings it before returning,
// so a misconfigured REDIS_ADDR fails at startup rather than on the first
// session lookup.
func NewRedisBackend(ctx context.Context, addr string) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &RedisBackend{
		client: client,
		prefix: "trustgate:session:",
	}, nil
}

func (b *RedisBackend) key(token string) string {
	return b.prefix + token
}

// wireSession mirrors Session for Redis storage. Session.Token is
// json:"-" on purpose (an API response must never echo a bearer token
// back), which would silently drop it from a plain json.Marshal(sess) here
// too, so storage uses its own tagged copy instead.
type wireSession struct {
	Token     string    `json:"token"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Put stores sess with a TTL matching its remaining lifetime, so an expired
// session is evicted by Redis itself without a sweep ever running. A
// session already expired when Put is called is stored with a 1-second TTL
// rather than silently dropped, keeping Put's contract unconditional.
func (b *RedisBackend) Put(sess *Session) {
	data, err := json.Marshal(wireSession{
		Token:     sess.Token,
		TenantID:  sess.TenantID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
	if err != nil {
		return
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	b.client.Set(context.Background(), b.key(sess.Token), data, ttl)
}

// Get fetches and decodes the session for token, if present and not yet
// evicted by Redis's own TTL.
func (b *RedisBackend) Get(token string) (*Session, bool) {
	data, err := b.client.Get(context.Background(), b.key(token)).Bytes()
	if err != nil {
		return nil, false
	}
	var w wireSession
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, false
	}
	return &Session{
		Token:     w.Token,
		TenantID:  w.TenantID,
		CreatedAt: w.CreatedAt,
		ExpiresAt: w.ExpiresAt,
	}, true
}

// Delete removes a session unconditionally.
func (b *RedisBackend) Delete(token string) {
	b.client.Del(context.Background(), b.key(token))
}

// Sweep is a no-op: Redis evicts expired keys itself via the per-key TTL
// set in Put. It always returns 0, which callers read as "nothing left for
// me to do," not "nothing expired."
func (b *RedisBackend) Sweep(_ func() time.Time) int {
	return 0
}
