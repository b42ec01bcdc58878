package raft

import (
	"testing"
	"time"
)

func TestCandidateStateMajority(t *testing.T) {
	c := newCandidateState(1, "a")
	conf := ConfigurationView{Peers: []PeerID{"a", "b", "c"}}
	if c.hasMajority(conf) {
		t.Fatal("one of three votes should not be a majority")
	}
	c.recordVote("b")
	if !c.hasMajority(conf) {
		t.Fatal("two of three votes should be a majority")
	}
}

func TestCandidateStateJointMajority(t *testing.T) {
	c := newCandidateState(1, "a")
	conf := ConfigurationView{Peers: []PeerID{"a", "b", "c"}, Staging: []PeerID{"a", "d", "e"}}
	c.recordVote("b")
	if c.hasMajority(conf) {
		t.Fatal("old-config majority without new-config majority should not be enough")
	}
	c.recordVote("d")
	if !c.hasMajority(conf) {
		t.Fatal("majorities in both configs should grant leadership")
	}
}

func TestLeaderStateLease(t *testing.T) {
	l := newLeaderState([]PeerID{"a", "b"}, 0)
	if !l.leaseRenewedAt().IsZero() {
		t.Fatal("lease should start unrenewed")
	}
	l.renewLease()
	if time.Since(l.leaseRenewedAt()) > time.Second {
		t.Fatal("lease should have just been renewed")
	}
}

func TestLeaderStateRecordSuccessAndInconsistency(t *testing.T) {
	l := newLeaderState([]PeerID{"b"}, 5)
	if got := l.nextIndexFor("b"); got != 6 {
		t.Fatalf("expected initial nextIndex 6, got %d", got)
	}
	l.recordSuccess("b", 6)
	if got := l.nextIndexFor("b"); got != 7 {
		t.Fatalf("expected nextIndex 7 after success, got %d", got)
	}
	l.recordInconsistency("b", 3)
	if got := l.nextIndexFor("b"); got != 3 {
		t.Fatalf("expected nextIndex to back off to 3, got %d", got)
	}
}

func TestLeaderStateCheckSlowness(t *testing.T) {
	l := newLeaderState([]PeerID{"b"}, 0)
	l.recordSuccess("b", 0)
	if l.checkSlowness("b", time.Hour) {
		t.Fatal("should not be slow with a long threshold")
	}
	l.appenders["b"].lastSuccess = time.Now().Add(-time.Hour)
	if !l.checkSlowness("b", time.Millisecond) {
		t.Fatal("expected transition to slow to be reported")
	}
	if l.checkSlowness("b", time.Millisecond) {
		t.Fatal("should only report the transition once")
	}
}

func TestMajorityCommitIndex(t *testing.T) {
	cases := []struct {
		in   []LogIndex
		want LogIndex
	}{
		{[]LogIndex{1, 2, 3}, 2},
		{[]LogIndex{5, 5, 5}, 5},
		{[]LogIndex{1, 1, 1, 1, 10}, 1},
		{nil, 0},
	}
	for _, tc := range cases {
		if got := majorityCommitIndex(tc.in); got != tc.want {
			t.Fatalf("majorityCommitIndex(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestLeaderStateRecordApplied(t *testing.T) {
	l := newLeaderState([]PeerID{"b", "c"}, 0)
	applied := l.appliedIndexes(0)
	if got := allAppliedIndex(applied); got != 0 {
		t.Fatalf("expected allAppliedIndex 0 before any reports, got %d", got)
	}

	l.recordApplied("b", 4)
	l.recordApplied("c", 2)
	applied = l.appliedIndexes(5)
	if got := majorityCommitIndex(applied); got != 4 {
		t.Fatalf("expected majority-applied 4, got %d (%v)", got, applied)
	}
	if got := allAppliedIndex(applied); got != 2 {
		t.Fatalf("expected all-applied to be the minimum 2, got %d (%v)", got, applied)
	}

	// A stale, lower report must never regress the recorded value.
	l.recordApplied("c", 1)
	applied = l.appliedIndexes(5)
	if got := allAppliedIndex(applied); got != 2 {
		t.Fatalf("a stale report should not regress appliedIndex, got %d", got)
	}
}

func TestAllAppliedIndex(t *testing.T) {
	cases := []struct {
		in   []LogIndex
		want LogIndex
	}{
		{[]LogIndex{1, 2, 3}, 1},
		{[]LogIndex{5, 5, 5}, 5},
		{[]LogIndex{0, 9, 9}, 0},
		{nil, 0},
	}
	for _, tc := range cases {
		if got := allAppliedIndex(tc.in); got != tc.want {
			t.Fatalf("allAppliedIndex(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFollowerStateWithholdVotes(t *testing.T) {
	f := newFollowerState(50*time.Millisecond, 100*time.Millisecond)
	if !f.shouldWithholdVotes() {
		t.Fatal("a freshly touched follower should withhold votes")
	}
	time.Sleep(60 * time.Millisecond)
	if f.shouldWithholdVotes() {
		t.Fatal("an old leader contact should no longer withhold votes")
	}
	f.touch()
	if !f.shouldWithholdVotes() {
		t.Fatal("touch should reset the withhold window")
	}
}
