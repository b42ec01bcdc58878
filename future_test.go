package raft

import (
	"context"
	"testing"
	"time"
)

func TestFutureCompleteThenAwait(t *testing.T) {
	f := NewFuture[int]()
	f.Complete(42)
	v, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestFutureAwaitBlocksUntilComplete(t *testing.T) {
	f := NewFuture[string]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Complete("done")
	}()
	v, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if v != "done" {
		t.Fatalf("expected done, got %q", v)
	}
}

func TestFutureAwaitRespectsContext(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Await(ctx); err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestCompletedFuture(t *testing.T) {
	f := CompletedFuture(7)
	v, err := f.Await(context.Background())
	if err != nil || v != 7 {
		t.Fatalf("expected (7, nil), got (%d, %v)", v, err)
	}
}

func TestFutureAwaitSupportsMultipleReaders(t *testing.T) {
	f := NewFuture[int]()
	f.Complete(9)

	// A shared future (e.g. a RetryCacheEntry's) must be awaitable by every
	// caller that observes it, not just the first.
	for i := 0; i < 3; i++ {
		v, err := f.Await(context.Background())
		if err != nil {
			t.Fatalf("Await #%d: %v", i, err)
		}
		if v != 9 {
			t.Fatalf("Await #%d: expected 9, got %d", i, v)
		}
	}
}
