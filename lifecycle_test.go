package raft

import "testing"

func TestLifeCycleHappyPath(t *testing.T) {
	l := NewLifeCycle()
	if l.State() != New {
		t.Fatalf("expected New, got %v", l.State())
	}
	if !l.StartTransition() {
		t.Fatal("expected StartTransition to succeed from New")
	}
	if l.State() != Starting {
		t.Fatalf("expected Starting, got %v", l.State())
	}
	if !l.ToRunning() {
		t.Fatal("expected ToRunning to succeed from Starting")
	}
	if err := l.CheckRunning("s1"); err != nil {
		t.Fatalf("CheckRunning: %v", err)
	}
	if !l.ToClosing() {
		t.Fatal("expected ToClosing to succeed")
	}
	if err := l.CheckRunning("s1"); err == nil {
		t.Fatal("expected CheckRunning to fail while Closing")
	}
	l.ToClosed()
	if l.State() != Closed {
		t.Fatalf("expected Closed, got %v", l.State())
	}
}

func TestLifeCycleRejectsDoubleStart(t *testing.T) {
	l := NewLifeCycle()
	if !l.StartTransition() {
		t.Fatal("first StartTransition should succeed")
	}
	if l.StartTransition() {
		t.Fatal("second StartTransition should fail")
	}
}

func TestLifeCycleCheckRunningOrStarting(t *testing.T) {
	l := NewLifeCycle()
	if err := l.CheckRunningOrStarting("s1"); err == nil {
		t.Fatal("expected error in New state")
	}
	l.StartTransition()
	if err := l.CheckRunningOrStarting("s1"); err != nil {
		t.Fatalf("expected Starting to be allowed: %v", err)
	}
	l.ToRunning()
	if err := l.CheckRunningOrStarting("s1"); err != nil {
		t.Fatalf("expected Running to be allowed: %v", err)
	}
}

func TestLifeCycleToClosingFromNew(t *testing.T) {
	l := NewLifeCycle()
	if !l.ToClosing() {
		t.Fatal("expected a never-started core to close directly")
	}
	if l.ToClosing() {
		t.Fatal("second ToClosing should fail")
	}
}
