package raft

import (
	"context"
	"testing"
)

func TestPendingRequestsAddResolve(t *testing.T) {
	p := NewPendingRequests()
	future := NewFuture[Reply]()
	ctx := &TransactionContext{ClientID: "c", CallID: 1, LogIndex: 10}
	p.Add(10, ctx, future)

	if got, ok := p.TransactionContext(10); !ok || got != ctx {
		t.Fatal("expected to retrieve the staged TransactionContext")
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 outstanding entry, got %d", p.Len())
	}

	p.Resolve(10, Reply{Success: true, LogIndex: 10})
	reply, err := future.Await(context.Background())
	if err != nil || !reply.Success {
		t.Fatalf("expected resolved success reply, got %+v, err=%v", reply, err)
	}
	if p.Len() != 0 {
		t.Fatalf("expected 0 outstanding entries after resolve, got %d", p.Len())
	}
}

func TestPendingRequestsResolveUnknownIndexIsNoop(t *testing.T) {
	p := NewPendingRequests()
	p.Resolve(99, Reply{Success: true})
}

func TestPendingRequestsFailAll(t *testing.T) {
	p := NewPendingRequests()
	f1 := NewFuture[Reply]()
	f2 := NewFuture[Reply]()
	p.Add(1, &TransactionContext{}, f1)
	p.Add(2, &TransactionContext{}, f2)
	watchFuture := NewFuture[Reply]()
	p.AddWatch(&WatchRequest{Index: 5, Level: Committed, Future: watchFuture})

	p.FailAll(NotLeaderError{ServerID: "s1"})

	for _, f := range []*Future[Reply]{f1, f2, watchFuture} {
		reply, err := f.Await(context.Background())
		if err != nil {
			t.Fatalf("Await: %v", err)
		}
		if reply.Success {
			t.Fatal("expected failure reply")
		}
	}
	if p.Len() != 0 {
		t.Fatalf("expected 0 entries after FailAll, got %d", p.Len())
	}
}

func TestPendingRequestsNotifyReplication(t *testing.T) {
	p := NewPendingRequests()
	committedWatch := NewFuture[Reply]()
	majorityWatch := NewFuture[Reply]()
	allWatch := NewFuture[Reply]()
	p.AddWatch(&WatchRequest{Index: 5, Level: Committed, Future: committedWatch})
	p.AddWatch(&WatchRequest{Index: 5, Level: MajorityApplied, Future: majorityWatch})
	p.AddWatch(&WatchRequest{Index: 5, Level: AllApplied, Future: allWatch})

	p.NotifyReplication(5, 3, 2)

	reply, err := committedWatch.Await(context.Background())
	if err != nil || !reply.Success {
		t.Fatalf("expected committed watch to resolve, got %+v, err=%v", reply, err)
	}

	select {
	case <-majorityWatch.done:
		t.Fatal("majority-applied watch should not have resolved yet")
	default:
	}

	p.NotifyReplication(5, 5, 5)
	if _, err := majorityWatch.Await(context.Background()); err != nil {
		t.Fatalf("expected majority watch to resolve: %v", err)
	}
	if _, err := allWatch.Await(context.Background()); err != nil {
		t.Fatalf("expected all-applied watch to resolve: %v", err)
	}
}
