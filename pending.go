package raft

import "sync"

// WatchRequest is a registered WATCH: it resolves once Index reaches Level
// in the apply/commit pipeline.
type WatchRequest struct {
	Index  LogIndex
	Level  ReplicationLevel
	Future *Future[Reply]
}

// PendingRequests is the leader-side bookkeeping for client writes awaiting
// commit and apply, keyed by the log index the leader assigned them.
// Entries are resolved by the apply loop once their index has been applied,
// or failed outright on a leadership change.
type PendingRequests struct {
	mu      sync.Mutex
	entries map[LogIndex]*pendingEntry
	watches []*WatchRequest
}

type pendingEntry struct {
	ctx    *TransactionContext
	future *Future[Reply]
}

// NewPendingRequests creates an empty PendingRequests table.
func NewPendingRequests() *PendingRequests {
	return &PendingRequests{entries: make(map[LogIndex]*pendingEntry)}
}

// Add registers a pending write at index, to be resolved when the apply
// loop completes that index.
func (p *PendingRequests) Add(index LogIndex, ctx *TransactionContext, future *Future[Reply]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[index] = &pendingEntry{ctx: ctx, future: future}
}

// TransactionContext returns the TransactionContext the leader staged for
// index, if this core originated it (as opposed to a follower synthesizing
// one from the replicated entry).
func (p *PendingRequests) TransactionContext(index LogIndex) (*TransactionContext, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[index]
	if !ok {
		return nil, false
	}
	return entry.ctx, true
}

// Resolve completes and removes the pending entry at index with reply, a
// no-op if no entry is registered at that index (e.g. this peer is not the
// leader that originated it).
func (p *PendingRequests) Resolve(index LogIndex, reply Reply) {
	p.mu.Lock()
	entry, ok := p.entries[index]
	if ok {
		delete(p.entries, index)
	}
	p.mu.Unlock()
	if ok {
		entry.future.Complete(reply)
	}
}

// FailAll fails every outstanding entry with err, used when changeToFollower
// cancels a lost leadership: no pending write may be left to resolve on its
// own after this peer stops being leader for that term.
func (p *PendingRequests) FailAll(err error) {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[LogIndex]*pendingEntry)
	watches := p.watches
	p.watches = nil
	p.mu.Unlock()
	for _, entry := range entries {
		entry.future.Complete(Reply{Success: false, Err: err})
	}
	for _, w := range watches {
		w.Future.Complete(Reply{Success: false, Err: err})
	}
}

// AddWatch registers a WATCH request to be resolved by NotifyReplication.
func (p *PendingRequests) AddWatch(w *WatchRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watches = append(p.watches, w)
}

// NotifyReplication re-evaluates every registered watch against the current
// (committedIndex, majorityAppliedIndex, allAppliedIndex) triple, resolving
// any whose bar has been cleared.
func (p *PendingRequests) NotifyReplication(committed, majorityApplied, allApplied LogIndex) {
	p.mu.Lock()
	var resolved []*WatchRequest
	remaining := p.watches[:0]
	for _, w := range p.watches {
		var reached LogIndex
		switch w.Level {
		case Committed:
			reached = committed
		case MajorityApplied:
			reached = majorityApplied
		case AllApplied:
			reached = allApplied
		}
		if reached >= w.Index {
			resolved = append(resolved, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	p.watches = remaining
	p.mu.Unlock()
	for _, w := range resolved {
		w.Future.Complete(Reply{Success: true, LogIndex: w.Index})
	}
}

// Len reports how many writes are currently outstanding.
func (p *PendingRequests) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
