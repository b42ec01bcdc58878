package raft

import "sync"

// ConfigurationView is the current membership of a raft group: the
// committed peer set, plus an optional staging set while a joint
// reconfiguration is underway.
type ConfigurationView struct {
	Peers       []PeerID
	Staging     []PeerID
	LogIndex    LogIndex
	stableFlag  bool
	committedFlag bool
}

// Stable reports whether no joint configuration is currently pending.
func (c ConfigurationView) Stable() bool { return c.stableFlag }

// Committed reports whether the latest configuration entry's index is at or
// below the group's commit index.
func (c ConfigurationView) Committed() bool { return c.committedFlag }

// Contains reports whether peer is part of the committed (non-staging) set.
func (c ConfigurationView) Contains(peer PeerID) bool {
	for _, p := range c.Peers {
		if p == peer {
			return true
		}
	}
	return false
}

// AllMembers returns every peer in either half of a (possibly joint)
// configuration, deduplicated.
func (c ConfigurationView) AllMembers() []PeerID {
	seen := make(map[PeerID]bool, len(c.Peers)+len(c.Staging))
	var out []PeerID
	for _, p := range append(append([]PeerID{}, c.Peers...), c.Staging...) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// configurationManager owns the group's ConfigurationView and the
// in-progress reconfiguration future, serialized independently of the peer
// mutex so GetGroupInfo can read it without contending with the hot RPC
// path.
type configurationManager struct {
	mu      sync.Mutex
	view    ConfigurationView
	pending *Future[Reply]
}

func newConfigurationManager(initial []PeerID) *configurationManager {
	return &configurationManager{
		view: ConfigurationView{Peers: initial, stableFlag: true, committedFlag: true},
	}
}

func (c *configurationManager) current() ConfigurationView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// beginStaging starts a joint reconfiguration to newPeers, rejecting a
// second one while the first is outstanding.
func (c *configurationManager) beginStaging(newPeers []PeerID, index LogIndex) (*Future[Reply], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.view.stableFlag || c.pending != nil {
		return nil, ReconfigurationInProgressError{}
	}
	c.view.Staging = newPeers
	c.view.stableFlag = false
	c.view.committedFlag = false
	c.view.LogIndex = index
	c.pending = NewFuture[Reply]()
	return c.pending, nil
}

// commit folds a configuration entry at index into the committed view. If
// the entry has no staging half, the outstanding reconfiguration future (if
// any) is completed; the entry's peers are not compared with the staging set.
func (c *configurationManager) commit(index LogIndex, peers, staging []PeerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Peers = peers
	c.view.Staging = staging
	c.view.LogIndex = index
	c.view.stableFlag = len(staging) == 0
	c.view.committedFlag = true
	if c.view.stableFlag && c.pending != nil {
		pending := c.pending
		c.pending = nil
		pending.Complete(Reply{Success: true, LogIndex: index})
	}
}

// abort fails any outstanding reconfiguration and reverts to the last
// committed (non-staging) view, used when leadership is lost mid-change.
func (c *configurationManager) abort(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Staging = nil
	c.view.stableFlag = true
	if c.pending != nil {
		pending := c.pending
		c.pending = nil
		pending.Complete(Reply{Success: false, Err: err})
	}
}
