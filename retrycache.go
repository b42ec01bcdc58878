package raft

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RetryCacheState is the lifecycle of one (clientId, callId) entry.
type RetryCacheState int

const (
	// Pending means the request has been admitted but not yet completed.
	Pending RetryCacheState = iota
	// CompletedOK means the request finished successfully; Reply holds the
	// cached response to replay for duplicate submissions.
	CompletedOK
	// CompletedFail means the request finished with an error; Reply holds
	// the cached failure to replay.
	CompletedFail
)

// retryCacheKey is the composite key the cache is indexed by.
type retryCacheKey struct {
	ClientID PeerID
	CallID   uint64
}

// RetryCacheEntry is one admitted client request's at-most-once record.
type RetryCacheEntry struct {
	State   RetryCacheState
	Future  *Future[Reply]
	Expires time.Time
}

// RetryCache guarantees at-most-once client semantics: two submissions with
// the same (clientId, callId) that both complete observe byte-identical
// replies, because the second submission is served the first's cached
// future rather than re-entering the state machine. Bounded by an LRU so a
// client that never calls back with a given id does not leak memory
// forever; once the LRU is full, adding an entry evicts the least recently
// used one whatever its state, PENDING included. Reap discards only entries
// whose TTL has elapsed and spares PENDING ones; expired entries stay until
// Reap is called, and ServerCore does not call it.
type RetryCache struct {
	mu    sync.Mutex
	cache *lru.Cache[retryCacheKey, *RetryCacheEntry]
	ttl   time.Duration
}

// NewRetryCache creates a RetryCache holding up to capacity entries, each
// expiring ttl after completion.
func NewRetryCache(capacity int, ttl time.Duration) *RetryCache {
	cache, _ := lru.New[retryCacheKey, *RetryCacheEntry](capacity)
	return &RetryCache{cache: cache, ttl: ttl}
}

// Get returns the existing entry for (clientID, callID), if any.
func (r *RetryCache) Get(clientID PeerID, callID uint64) (*RetryCacheEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache.Get(retryCacheKey{clientID, callID})
	return entry, ok
}

// Reserve admits a new PENDING entry for (clientID, callID) and returns it.
// Callers must check Get first; Reserve unconditionally (re)creates the
// entry.
func (r *RetryCache) Reserve(clientID PeerID, callID uint64) *RetryCacheEntry {
	entry := &RetryCacheEntry{State: Pending, Future: NewFuture[Reply]()}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Add(retryCacheKey{clientID, callID}, entry)
	return entry
}

// Complete resolves a PENDING entry to its final state and reply, arming its
// expiry.
func (r *RetryCache) Complete(clientID PeerID, callID uint64, reply Reply) {
	r.mu.Lock()
	entry, ok := r.cache.Get(retryCacheKey{clientID, callID})
	r.mu.Unlock()
	if !ok {
		return
	}
	if reply.Success {
		entry.State = CompletedOK
	} else {
		entry.State = CompletedFail
	}
	entry.Expires = time.Now().Add(r.ttl)
	entry.Future.Complete(reply)
}

// Reap evicts every entry whose TTL has elapsed, so completed entries do not
// occupy cache capacity forever even under light load.
func (r *RetryCache) Reap(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range r.cache.Keys() {
		entry, ok := r.cache.Peek(key)
		if !ok {
			continue
		}
		if entry.State != Pending && !entry.Expires.IsZero() && now.After(entry.Expires) {
			r.cache.Remove(key)
		}
	}
}
