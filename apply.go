package raft

import (
	"context"
	"sort"
	"time"
)

// applyLoop is the single logical worker that drains committed entries from
// the log in index order, per spec.md §4.6. It runs for the lifetime of the
// core, parked on applyCond whenever there is nothing to apply.
func (c *ServerCore) applyLoop() {
	defer c.wg.Done()
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		for c.lastApplied >= c.commitIndex && c.lifecycle.State() != Closing && c.lifecycle.State() != Closed {
			c.applyCond.Wait()
		}
		if c.lifecycle.State() == Closing || c.lifecycle.State() == Closed {
			return
		}

		index := c.lastApplied + 1
		entry, err := c.state.getLog().GetEntry(index)
		if err != nil {
			// Entry not yet durable; wait for the append future to land.
			c.applyCond.Wait()
			continue
		}

		c.mu.Unlock()
		c.applyEntry(entry)
		c.mu.Lock()

		c.lastApplied = index
		c.reportMetrics()

		if c.role.Role == RoleLeader && c.role.Leader != nil {
			applied := c.role.Leader.appliedIndexes(c.lastApplied)
			majorityApplied := majorityCommitIndex(applied)
			allApplied := allAppliedIndex(applied)
			c.role.Leader.pending.NotifyReplication(c.commitIndex, majorityApplied, allApplied)
		}
	}
}

// applyEntry dispatches a single committed entry to the state machine,
// per spec.md §4.6. It runs without the peer mutex held.
func (c *ServerCore) applyEntry(entry *LogEntry) {
	switch entry.Type {
	case MetadataEntry:
		c.state.stateMachine.notifyIndexUpdate(entry.Term, entry.Index)
		return
	case ConfigurationEntry:
		c.config.commit(entry.Index, entry.Peers, entry.Staging)
		return
	case StateMachineEntry:
		c.applyStateMachineEntry(entry)
	}
}

func (c *ServerCore) applyStateMachineEntry(entry *LogEntry) {
	c.mu.Lock()
	var ctx *TransactionContext
	var isLeader bool
	if c.role.Role == RoleLeader && c.role.Leader != nil {
		if found, ok := c.role.Leader.pending.TransactionContext(entry.Index); ok {
			ctx = found
			isLeader = true
		}
	}
	c.mu.Unlock()

	if ctx == nil {
		ctx = &TransactionContext{ClientID: entry.ClientID, CallID: entry.CallID, LogIndex: entry.Index, Term: entry.Term, Data: entry.Data}
	}

	ctx = c.state.stateMachine.applyTransactionSerial(ctx)
	future := c.state.stateMachine.applyTransaction(ctx)
	message, err := future.Await(c.ctx)

	var reply Reply
	if err != nil {
		reply = Reply{Success: false, LogIndex: entry.Index, Err: StateMachineError{ServerID: string(c.id), Cause: err}}
	} else {
		reply = Reply{Success: true, Message: message, LogIndex: entry.Index}
	}

	c.retryCache.Complete(entry.ClientID, entry.CallID, reply)

	if isLeader {
		c.mu.Lock()
		if c.role.Role == RoleLeader && c.role.Leader != nil {
			c.role.Leader.pending.Resolve(entry.Index, reply)
		}
		c.mu.Unlock()
	}
}

// runAppender is the leader-side per-follower replication worker: it
// streams AppendEntries RPCs on a fixed heartbeat cadence, backing off
// nextIndex on INCONSISTENCY and marking itself slow past
// rpcSlownessTimeoutMs, per spec.md §4.3's LeaderState description.
func (c *ServerCore) runAppender(ctx context.Context, peer PeerID, leader *LeaderState) {
	ticker := time.NewTicker(c.opts.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sendAppendEntries(ctx, peer, leader)
		}
	}
}

func (c *ServerCore) sendAppendEntries(ctx context.Context, peer PeerID, leader *LeaderState) {
	c.mu.Lock()
	if c.role.Role != RoleLeader || c.role.Leader != leader {
		c.mu.Unlock()
		return
	}
	nextIndex := leader.nextIndexFor(peer)
	log := c.state.getLog()
	var previous TermIndex
	if nextIndex > 1 {
		if prevEntry, err := log.GetEntry(nextIndex - 1); err == nil {
			previous = prevEntry.TermIndex()
		}
	}
	var entries []*LogEntry
	for i := 0; i < c.opts.maxEntriesPerRPC && log.Contains(nextIndex+LogIndex(i)); i++ {
		if e, err := log.GetEntry(nextIndex + LogIndex(i)); err == nil {
			entries = append(entries, e)
		}
	}
	req := &AppendEntriesRequest{
		LeaderID: c.id, GroupID: c.groupID, Term: c.state.currentTerm(),
		Previous: previous, LeaderCommit: c.commitIndex, Entries: entries,
		CommitInfos: c.commitInfos.Snapshot(),
	}
	term := c.state.currentTerm()
	c.mu.Unlock()

	rpcCtx, cancel := c.withinRPCTimeout()
	start := time.Now()
	resp, err := c.transport.SendAppendEntries(rpcCtx, peer, req)
	cancel()
	if err != nil {
		c.mu.Lock()
		if c.role.Leader == leader && leader.checkSlowness(peer, c.opts.rpcSlownessTimeout) {
			c.metrics.MarkAppenderSlow(peer, true)
			c.logger.Warnf("server %s: appender to %s is slow", c.id, peer)
		}
		c.mu.Unlock()
		return
	}
	c.metrics.ObserveAppenderRPC(peer, time.Since(start))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.role.Role != RoleLeader || c.role.Leader != leader {
		return
	}
	if resp.Term > term {
		c.changeToFollowerLocked(resp.Term, true)
		return
	}

	switch resp.Result {
	case AppendSuccess:
		matchIndex := nextIndex - 1
		if len(entries) > 0 {
			matchIndex = entries[len(entries)-1].Index
		}
		leader.recordSuccess(peer, matchIndex)
		leader.recordApplied(peer, resp.FollowerApplied)
		c.metrics.MarkAppenderSlow(peer, false)
		c.commitInfos.Update(peer, resp.FollowerCommit)
		c.advanceCommitLocked(leader)
	case AppendInconsistency:
		leader.recordInconsistency(peer, resp.NextIndex)
	case AppendNotLeader:
	}
}

// advanceCommitLocked renews the read lease to the latest instant by which a
// majority (counting the leader itself) had acknowledged an AppendEntries,
// recomputes commitIndex from the leader's matchIndex set, and marks the
// leader Ready once a majority has replicated an entry in the current term
// (leader completeness). Callers must hold c.mu.
func (c *ServerCore) advanceCommitLocked(leader *LeaderState) {
	acks := []time.Time{time.Now()}
	leader.mu.Lock()
	for _, a := range leader.appenders {
		acks = append(acks, a.lastSuccess)
	}
	sort.Slice(acks, func(i, j int) bool { return acks[i].After(acks[j]) })
	if quorumAck := acks[len(acks)/2]; quorumAck.After(leader.leaseTime) {
		leader.leaseTime = quorumAck
	}
	leader.mu.Unlock()

	matches := leader.matchIndexes(c.state.getLog().LastIndex())
	newCommit := majorityCommitIndex(matches)
	if newCommit <= c.commitIndex {
		return
	}
	entry, err := c.state.getLog().GetEntry(newCommit)
	if err != nil || entry.Term != c.state.currentTerm() {
		// Raft §5.4.2: a leader may only commit entries from its own term
		// directly; earlier-term entries commit as a side effect.
		return
	}
	c.commitIndex = newCommit
	leader.setReady(true)
	c.applyCond.Broadcast()
}
