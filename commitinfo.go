package raft

import "sync"

// CommitInfo is a single peer's last-known committed index, as reported in
// AppendEntries requests/responses and folded into CommitInfoCache.
type CommitInfo struct {
	Peer          PeerID
	CommittedIndex LogIndex
}

// CommitInfoCache tracks the last-known committed index reported by every
// peer in the group. Entries only move forward: a report older than what is
// already cached is ignored, since CommitInfo.CommittedIndex is monotonic
// per spec §3.
type CommitInfoCache struct {
	mu    sync.Mutex
	infos map[PeerID]LogIndex
}

// NewCommitInfoCache creates an empty CommitInfoCache.
func NewCommitInfoCache() *CommitInfoCache {
	return &CommitInfoCache{infos: make(map[PeerID]LogIndex)}
}

// Update folds a single report into the cache, discarding it if it would
// move the peer's committed index backwards.
func (c *CommitInfoCache) Update(peer PeerID, index LogIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.infos[peer]; !ok || index > existing {
		c.infos[peer] = index
	}
}

// UpdateAll folds a batch of reports, as arrives piggybacked on an
// AppendEntries request.
func (c *CommitInfoCache) UpdateAll(infos []CommitInfo) {
	for _, info := range infos {
		c.Update(info.Peer, info.CommittedIndex)
	}
}

// Snapshot returns a point-in-time copy of every peer's last-known
// committed index, for GetGroupInfo and the metrics surface.
func (c *CommitInfoCache) Snapshot() []CommitInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CommitInfo, 0, len(c.infos))
	for peer, index := range c.infos {
		out = append(out, CommitInfo{Peer: peer, CommittedIndex: index})
	}
	return out
}

// Get returns the last-known committed index for peer, or 0 if unknown.
func (c *CommitInfoCache) Get(peer PeerID) LogIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.infos[peer]
}
