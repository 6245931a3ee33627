package session

import "time"

// Backend is the storage shape Manager depends on. *Store (in-memory) is
// the default; RedisBackend lets multiple gateway replicas share a session
// table at the cost of the strong consistency a single in-process map
// gives for free.
type Backend interface {
	Put(sess *Session)
	Get(token string) (*Session, bool)
	Delete(token string)
	Sweep(now func() time.Time) int
}
