package raft

import (
	"context"
	"testing"
)

func TestConfigurationManagerInitialView(t *testing.T) {
	c := newConfigurationManager([]PeerID{"a", "b", "c"})
	view := c.current()
	if !view.Stable() || !view.Committed() {
		t.Fatal("initial view should be stable and committed")
	}
	if !view.Contains("a") || view.Contains("z") {
		t.Fatal("Contains should reflect the initial peer set")
	}
}

func TestConfigurationManagerStagingLifecycle(t *testing.T) {
	c := newConfigurationManager([]PeerID{"a", "b", "c"})
	future, err := c.beginStaging([]PeerID{"a", "b", "d"}, 10)
	if err != nil {
		t.Fatalf("beginStaging: %v", err)
	}
	if c.current().Stable() {
		t.Fatal("expected an unstable view while staging")
	}

	if _, err := c.beginStaging([]PeerID{"a", "b", "e"}, 11); err == nil {
		t.Fatal("expected a second concurrent staging to be rejected")
	}

	c.commit(10, []PeerID{"a", "b", "d"}, nil)
	view := c.current()
	if !view.Stable() || !view.Committed() {
		t.Fatal("expected the view to settle once the staging set commits without a joint half")
	}

	reply, err := future.Await(context.Background())
	if err != nil || !reply.Success {
		t.Fatalf("expected the staging future to resolve successfully, got %+v, err=%v", reply, err)
	}
}

func TestConfigurationManagerAbort(t *testing.T) {
	c := newConfigurationManager([]PeerID{"a", "b", "c"})
	future, err := c.beginStaging([]PeerID{"a", "b", "d"}, 10)
	if err != nil {
		t.Fatalf("beginStaging: %v", err)
	}
	c.abort(NotLeaderError{ServerID: "a"})

	view := c.current()
	if !view.Stable() {
		t.Fatal("abort should revert to a stable view")
	}
	reply, err := future.Await(context.Background())
	if err != nil || reply.Success {
		t.Fatal("expected the staging future to resolve as a failure")
	}
}

func TestConfigurationViewAllMembersDeduplicates(t *testing.T) {
	v := ConfigurationView{Peers: []PeerID{"a", "b"}, Staging: []PeerID{"b", "c"}}
	members := v.AllMembers()
	seen := map[PeerID]int{}
	for _, m := range members {
		seen[m]++
	}
	for _, p := range []PeerID{"a", "b", "c"} {
		if seen[p] != 1 {
			t.Fatalf("expected %s exactly once, got %d", p, seen[p])
		}
	}
}
