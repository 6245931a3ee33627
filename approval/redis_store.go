package approval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Mirror is a write-through, read-fallback shadow of the Orchestrator's
// table: every Record change is mirrored to it, and a lookup that misses
// the local table falls back to it. It exists for multi-replica
// deployments so an operator's Status/List call reaches a record even when
// it was created on a different replica than the one serving the request —
// a best-effort shared cache, not a way to Decide or Wait across replicas.
type Mirror interface {
	Save(ctx context.Context, rec Record)
	Load(ctx context.Context, id string) (Record, bool)
	All(ctx context.Context) []Record
}

// RedisMirror is the Mirror implementation backing STORE_BACKEND=redis.
type RedisMirror struct {
	client *redis.Client
	prefix string
	index  string
}

// NewRedisMirror dials addr (a host:port) and pings it before returning.
func NewRedisMirror(ctx context.Context, addr string) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &RedisMirror{
		client: client,
		prefix: "trustgate:approval:",
		index:  "trustgate:approval:index",
	}, nil
}

func (m *RedisMirror) key(id string) string {
	return m.prefix + id
}

// Save writes rec's current state, keeping the shared index of every known
// id up to date. Errors are swallowed: the mirror is a cache, and the
// local table remains the authoritative copy for the replica that owns the
// record.
func (m *RedisMirror) Save(ctx context.Context, rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	m.client.Set(ctx, m.key(rec.ID), data, 0)
	m.client.SAdd(ctx, m.index, rec.ID)
}

// Load fetches the mirrored record for id, if any replica has ever saved one.
func (m *RedisMirror) Load(ctx context.Context, id string) (Record, bool) {
	data, err := m.client.Get(ctx, m.key(id)).Bytes()
	if err != nil {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

// All returns every record any replica has mirrored.
func (m *RedisMirror) All(ctx context.Context) []Record {
	ids, err := m.client.SMembers(ctx, m.index).Result()
	if err != nil {
		return nil
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := m.Load(ctx, id); ok {
			out = append(out, rec)
		}
	}
	return out
}
