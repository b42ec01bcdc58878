package raft

import (
	"context"
	"sync"
)

// Future is a single-value, single-writer, multi-reader completion handle,
// generalizing the teacher's channel-based OperationResponseFuture to any
// result type so it can back log-append durability futures, state-machine
// apply futures, and outbound RPC futures alike. Unlike a bare buffered
// channel, Await never consumes the resolved value: a RetryCacheEntry's
// Future is handed to every caller that hits the same (clientId, callId)
// over the entry's lifetime, and each of them must be able to Await it
// independently.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	completed bool
}

// NewFuture creates an unresolved Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Complete resolves the future. Only the first call has an effect; later
// calls are no-ops, matching the teacher's guard against a future being
// completed twice.
func (f *Future[T]) Complete(value T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed {
		return
	}
	f.value = value
	f.completed = true
	close(f.done)
}

// Await blocks until the future resolves or ctx is cancelled. It may be
// called any number of times, including after the future has already
// resolved, and always returns the same value.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		v := f.value
		f.mu.Unlock()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// CompletedFuture returns a Future already resolved to value, useful for
// synchronous fast paths (e.g. a retry-cache hit) that still need to satisfy
// a future-returning signature.
func CompletedFuture[T any](value T) *Future[T] {
	f := NewFuture[T]()
	f.Complete(value)
	return f
}
