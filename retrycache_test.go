package raft

import (
	"context"
	"testing"
	"time"
)

func TestRetryCacheReserveThenComplete(t *testing.T) {
	c := NewRetryCache(16, time.Minute)
	if _, ok := c.Get("client-1", 1); ok {
		t.Fatal("expected no entry before Reserve")
	}
	entry := c.Reserve("client-1", 1)
	if entry.State != Pending {
		t.Fatalf("expected Pending, got %v", entry.State)
	}

	c.Complete("client-1", 1, Reply{Success: true, LogIndex: 5})

	got, ok := c.Get("client-1", 1)
	if !ok {
		t.Fatal("expected entry to still be present after Complete")
	}
	if got.State != CompletedOK {
		t.Fatalf("expected CompletedOK, got %v", got.State)
	}
	reply, err := got.Future.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if reply.LogIndex != 5 {
		t.Fatalf("expected LogIndex 5, got %d", reply.LogIndex)
	}
}

func TestRetryCacheCompleteFailure(t *testing.T) {
	c := NewRetryCache(16, time.Minute)
	c.Reserve("client-2", 1)
	c.Complete("client-2", 1, Reply{Success: false, Err: NotLeaderError{}})
	got, ok := c.Get("client-2", 1)
	if !ok || got.State != CompletedFail {
		t.Fatalf("expected CompletedFail, got ok=%v state=%v", ok, got.State)
	}
}

func TestRetryCacheReap(t *testing.T) {
	c := NewRetryCache(16, time.Millisecond)
	c.Reserve("client-3", 1)
	c.Complete("client-3", 1, Reply{Success: true})
	time.Sleep(5 * time.Millisecond)
	c.Reap(time.Now())
	if _, ok := c.Get("client-3", 1); ok {
		t.Fatal("expected entry to be reaped once its TTL elapsed")
	}
}

func TestRetryCacheReapSparesPending(t *testing.T) {
	c := NewRetryCache(16, time.Nanosecond)
	c.Reserve("client-4", 1)
	c.Reap(time.Now().Add(time.Hour))
	if _, ok := c.Get("client-4", 1); !ok {
		t.Fatal("a still-pending entry must never be reaped")
	}
}
