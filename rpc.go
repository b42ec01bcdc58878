package raft

import (
	"context"
	"time"
)

// RequestVote implements spec.md §4.4's RequestVote handler.
func (c *ServerCore) RequestVote(req *RequestVoteRequest) (*RequestVoteResponse, error) {
	if err := c.lifecycle.CheckRunning(string(c.id)); err != nil {
		return nil, err
	}
	if req.GroupID != c.groupID {
		return nil, GroupMismatchError{ServerID: string(c.id), LocalGroup: string(c.groupID), RemoteGroup: string(req.GroupID)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shouldWithholdVotesLocked(req.Term) {
		c.logger.Debugf("server %s: withholding vote from %s in term %d", c.id, req.CandidateID, req.Term)
		return &RequestVoteResponse{Term: c.state.currentTerm(), VoteGranted: false}, nil
	}

	granted := false
	shouldShutdown := false
	metadataChanged := false

	if c.state.recognizeCandidate(req.CandidateID, req.Term) {
		metadataChanged = true
		c.changeToFollowerLocked(req.Term, true)
		if c.state.isLogUpToDate(req.LastLogEntry) {
			c.state.grantVote(req.CandidateID)
			granted = true
			if c.role.Follower != nil {
				c.role.Follower.touch()
			}
		}
	}

	if !granted {
		conf := c.config.current()
		if c.role.Role == RoleLeader && conf.Stable() && conf.Committed() &&
			!conf.Contains(req.CandidateID) &&
			req.LastLogEntry.Less(configurationEntryTermIndex(c.state.getLog(), conf)) {
			shouldShutdown = true
		}
	}

	if metadataChanged {
		if err := c.state.persistMetadata(); err != nil {
			c.logger.Fatalf("server %s: failed to persist metadata: %v", c.id, err)
			return nil, err
		}
	}

	if !granted {
		c.logger.Debugf("server %s: rejected vote for %s in term %d", c.id, req.CandidateID, req.Term)
	}

	return &RequestVoteResponse{Term: c.state.currentTerm(), VoteGranted: granted, ShouldShutdown: shouldShutdown}, nil
}

// configurationEntryTermIndex returns the (term, index) of the log entry
// that installed conf, the yardstick spec.md §4.4 step 4 uses to decide
// whether a candidate is strictly older than the current configuration
// (as opposed to merely behind the leader in the same term). A fresh,
// never-replicated configuration (LogIndex == 0, e.g. during bootstrap) has
// no entry to look up and compares as (0, 0).
func configurationEntryTermIndex(log Log, conf ConfigurationView) TermIndex {
	if conf.LogIndex == 0 {
		return TermIndex{}
	}
	if entry, err := log.GetEntry(conf.LogIndex); err == nil {
		return TermIndex{Term: entry.Term, Index: conf.LogIndex}
	}
	return TermIndex{Index: conf.LogIndex}
}

// shouldWithholdVotesLocked reports whether this peer must refuse to grant a
// vote outright: it is leader of a term at least as high as the candidate's,
// or it is a follower that has heard from a live leader recently.
// Callers must hold c.mu.
func (c *ServerCore) shouldWithholdVotesLocked(candidateTerm Term) bool {
	if c.role.Role == RoleLeader && candidateTerm <= c.state.currentTerm() {
		return true
	}
	if c.role.Role == RoleFollower && c.role.Follower != nil && c.role.Follower.shouldWithholdVotes() {
		return true
	}
	return false
}

// AppendEntries implements spec.md §4.4's AppendEntries handler.
func (c *ServerCore) AppendEntries(req *AppendEntriesRequest) (*AppendEntriesResponse, error) {
	if err := c.lifecycle.CheckRunningOrStarting(string(c.id)); err != nil {
		return nil, err
	}
	if req.GroupID != c.groupID {
		return nil, GroupMismatchError{ServerID: string(c.id), LocalGroup: string(c.groupID), RemoteGroup: string(req.GroupID)}
	}
	if err := validateEntrySequence(req.Previous, req.Entries, req.Term); err != nil {
		return nil, err
	}

	c.mu.Lock()

	if !c.state.recognizeLeader(req.LeaderID, req.Term) {
		term := c.state.currentTerm()
		nextIndex := c.state.getLog().NextIndex()
		c.mu.Unlock()
		c.logger.Debugf("server %s: rejecting AppendEntries from %s, term %d is stale against %d", c.id, req.LeaderID, req.Term, term)
		return &AppendEntriesResponse{Term: term, Result: AppendNotLeader, NextIndex: nextIndex}, nil
	}

	c.changeToFollowerLocked(req.Term, false)
	c.state.leader = req.LeaderID
	if err := c.state.persistMetadata(); err != nil {
		c.mu.Unlock()
		c.logger.Fatalf("server %s: failed to persist metadata: %v", c.id, err)
		return nil, err
	}

	if c.lifecycle.State() == Starting && !req.Initializing {
		if c.lifecycle.ToRunning() && c.role.Follower != nil {
			c.role.Follower.run(c.ctx, c.onElectionTimeout)
		}
	}
	if c.role.Follower != nil {
		c.role.Follower.touch()
	}

	replyNextIndex, needsReply := c.inconsistencyCheckLocked(req)
	if needsReply {
		if c.role.Follower != nil {
			c.role.Follower.touch()
		}
		term := c.state.currentTerm()
		c.mu.Unlock()
		c.logger.Debugf("server %s: AppendEntries from %s inconsistent at %v, asking for nextIndex %d", c.id, req.LeaderID, req.Previous, replyNextIndex)
		return &AppendEntriesResponse{Term: term, Result: AppendInconsistency, NextIndex: replyNextIndex}, nil
	}

	c.updateConfigurationLocked(req.Entries)
	log := c.state.getLog()
	c.mu.Unlock()

	if len(req.Entries) > 0 {
		if err := log.AppendEntries(req.Entries); err != nil {
			return nil, err
		}
	}
	c.commitInfos.UpdateAll(req.CommitInfos)

	c.mu.Lock()
	newCommit := c.state.updateStateMachine(req.LeaderCommit, c.commitIndex)
	if newCommit > c.commitIndex {
		c.commitIndex = newCommit
		c.applyCond.Broadcast()
	}
	term := c.state.currentTerm()
	commitIndex := c.commitIndex
	appliedIndex := c.lastApplied
	nextIndex := log.NextIndex()
	if c.role.Follower != nil {
		c.role.Follower.touch()
	}
	c.mu.Unlock()

	return &AppendEntriesResponse{Term: term, Result: AppendSuccess, FollowerCommit: commitIndex, FollowerApplied: appliedIndex, NextIndex: nextIndex}, nil
}

// inconsistencyCheckLocked implements the step-5 inconsistency computation
// of spec.md §4.4. Callers must hold c.mu.
func (c *ServerCore) inconsistencyCheckLocked(req *AppendEntriesRequest) (replyNextIndex LogIndex, needsReply bool) {
	log := c.state.getLog()
	nextIndex := log.NextIndex()

	if c.state.inProgress != nil {
		return minLogIndex(nextIndex, req.Previous.Index), true
	}
	snapshotIndex := c.state.getSnapshotIndex()
	if snapshotIndex > 0 && len(req.Entries) > 0 && req.Entries[0].Index <= snapshotIndex {
		return snapshotIndex + 1, true
	}
	if req.Previous.Index > 0 && !c.entryPresentLocked(req.Previous) {
		return minLogIndex(nextIndex, req.Previous.Index), true
	}
	return 0, false
}

func (c *ServerCore) entryPresentLocked(previous TermIndex) bool {
	log := c.state.getLog()
	if log.Contains(previous.Index) {
		entry, err := log.GetEntry(previous.Index)
		return err == nil && entry.Term == previous.Term
	}
	if latest := c.state.getLatestSnapshot(); latest != nil &&
		latest.LastIncludedIndex == previous.Index && latest.LastIncludedTerm == previous.Term {
		return true
	}
	if installed := c.state.getLatestInstalledSnapshot(); installed != nil &&
		installed.LastIncludedIndex == previous.Index && installed.LastIncludedTerm == previous.Term {
		return true
	}
	return false
}

func minLogIndex(a, b LogIndex) LogIndex {
	if a < b {
		return a
	}
	return b
}

// updateConfigurationLocked folds any ConfigurationEntry in entries into the
// (uncommitted) configuration view. Callers must hold c.mu.
func (c *ServerCore) updateConfigurationLocked(entries []*LogEntry) {
	for _, e := range entries {
		if e.Type == ConfigurationEntry {
			c.config.mu.Lock()
			c.config.view.Peers = e.Peers
			c.config.view.Staging = e.Staging
			c.config.view.LogIndex = e.Index
			c.config.view.stableFlag = len(e.Staging) == 0
			c.config.view.committedFlag = false
			c.config.mu.Unlock()
		}
	}
}

func validateEntrySequence(previous TermIndex, entries []*LogEntry, leaderTerm Term) error {
	expected := previous.Index + 1
	for _, e := range entries {
		if e.Index != expected {
			return InconsistencyError{NextIndex: expected}
		}
		if e.Term > leaderTerm {
			return InconsistencyError{NextIndex: expected}
		}
		expected++
	}
	return nil
}

// InstallSnapshot implements spec.md §4.4's InstallSnapshot handler, in
// both chunk-mode and notify-mode.
func (c *ServerCore) InstallSnapshot(req *InstallSnapshotRequest, chunkFile SnapshotFile) (*InstallSnapshotResponse, error) {
	if err := c.lifecycle.CheckRunningOrStarting(string(c.id)); err != nil {
		return nil, err
	}
	if req.GroupID != c.groupID {
		return nil, GroupMismatchError{ServerID: string(c.id), LocalGroup: string(c.groupID), RemoteGroup: string(req.GroupID)}
	}
	if (req.Chunk != nil) != c.opts.installSnapshotEnabled {
		c.logger.Debugf("server %s: rejecting InstallSnapshot from %s, mode mismatch", c.id, req.LeaderID)
		return &InstallSnapshotResponse{Term: c.state.currentTerm(), Result: InstallConfMismatch}, nil
	}

	if req.Chunk != nil {
		return c.installSnapshotChunk(req)
	}
	return c.installSnapshotNotify(req, chunkFile)
}

func (c *ServerCore) installSnapshotChunk(req *InstallSnapshotRequest) (*InstallSnapshotResponse, error) {
	c.mu.Lock()
	if !c.state.recognizeLeader(req.LeaderID, req.Term) {
		term := c.state.currentTerm()
		c.mu.Unlock()
		c.logger.Debugf("server %s: rejecting InstallSnapshot from %s, term %d is stale against %d", c.id, req.LeaderID, req.Term, term)
		return &InstallSnapshotResponse{Term: term, Result: InstallNotLeader}, nil
	}
	c.changeToFollowerLocked(req.Term, false)
	if c.role.Follower != nil {
		c.role.Follower.touch()
	}
	storage := c.state.snapshotStorage
	c.mu.Unlock()

	chunk := req.Chunk
	chunkFile, err := storage.OpenChunkFile(chunk.LastIncludedTerm, chunk.LastIncludedIndex)
	if err != nil {
		return nil, err
	}
	if err := chunkFile.WriteChunk(chunk.Offset, chunk.Data); err != nil {
		return nil, err
	}

	if chunk.Done {
		c.mu.Lock()
		err := c.state.installSnapshot(chunkFile, chunk.LastIncludedTerm, chunk.LastIncludedIndex)
		if err == nil {
			if chunk.LastIncludedIndex > c.commitIndex {
				c.commitIndex = chunk.LastIncludedIndex
			}
			if chunk.LastIncludedIndex > c.lastApplied {
				c.lastApplied = chunk.LastIncludedIndex
			}
		}
		if c.role.Follower != nil {
			c.role.Follower.touch()
		}
		term := c.state.currentTerm()
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return &InstallSnapshotResponse{Term: term, Result: InstallSuccess, ChunkIndex: chunk.Offset}, nil
	}

	if err := chunkFile.Close(); err != nil {
		return nil, err
	}
	return &InstallSnapshotResponse{Term: req.Term, Result: InstallSuccess, ChunkIndex: chunk.Offset}, nil
}

func (c *ServerCore) installSnapshotNotify(req *InstallSnapshotRequest, _ SnapshotFile) (*InstallSnapshotResponse, error) {
	c.mu.Lock()
	if !c.state.recognizeLeader(req.LeaderID, req.Term) {
		term := c.state.currentTerm()
		c.mu.Unlock()
		c.logger.Debugf("server %s: rejecting InstallSnapshot from %s, term %d is stale against %d", c.id, req.LeaderID, req.Term, term)
		return &InstallSnapshotResponse{Term: term, Result: InstallNotLeader}, nil
	}
	c.changeToFollowerLocked(req.Term, false)
	if c.role.Follower != nil {
		c.role.Follower.touch()
	}

	notification := req.Notification
	target := TermIndex{Term: notification.FirstAvailableTerm, Index: notification.FirstAvailableIndex}

	if c.state.inProgress != nil {
		term := c.state.currentTerm()
		c.mu.Unlock()
		c.logger.Debugf("server %s: rejecting InstallSnapshot notification, one is already in progress", c.id)
		return &InstallSnapshotResponse{Term: term, Result: InstallInProgress}, nil
	}

	if c.state.getSnapshotIndex()+1 >= target.Index {
		snapshotIndex := c.state.getSnapshotIndex()
		term := c.state.currentTerm()
		c.mu.Unlock()
		c.logger.Debugf("server %s: InstallSnapshot notification target %v already installed at %d", c.id, target, snapshotIndex)
		return &InstallSnapshotResponse{Term: term, Result: InstallAlreadyInstalled, ChunkIndex: int64(snapshotIndex)}, nil
	}

	c.state.inProgress = &target
	sm := c.state.stateMachine
	term := c.state.currentTerm()
	c.mu.Unlock()

	c.wg.Add(1)
	go c.completeNotifyInstall(sm, target)

	return &InstallSnapshotResponse{Term: term, Result: InstallSuccess, ChunkIndex: -1}, nil
}

// completeNotifyInstall waits for the state machine's asynchronous snapshot
// fetch to resolve, then installs it. Open Question 2's finalizer: the
// installSnapshotTimeout bound guarantees InProgressSnapshot always clears,
// even if the state machine's future never completes.
func (c *ServerCore) completeNotifyInstall(sm StateMachine, target TermIndex) {
	defer c.wg.Done()
	ctx, cancel := context.WithTimeout(c.ctx, c.opts.installSnapshotTimeout)
	defer cancel()

	future := sm.notifyInstallSnapshotFromLeader(target)
	installed, err := future.Await(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.inProgress = nil
	if err != nil {
		c.logger.Warnf("server %s: notify-mode snapshot install for %v did not complete: %v", c.id, target, err)
		return
	}
	snapshot := NewSnapshot(installed.Index, installed.Term, nil)
	if reloadErr := c.state.reloadStateMachine(snapshot); reloadErr != nil {
		c.logger.Errorf("server %s: failed to reload after notify-mode install: %v", c.id, reloadErr)
		return
	}
	if installed.Index > c.commitIndex {
		c.commitIndex = installed.Index
	}
	if installed.Index > c.lastApplied {
		c.lastApplied = installed.Index
	}
	c.applyCond.Broadcast()
}

// changeToFollowerLocked implements spec.md's changeToFollowerAndPersistMetadata:
// it advances the term if needed, and replaces RoleState with a fresh
// FollowerState unless it is already Follower, force is false, and the term
// did not change. Callers must hold c.mu.
func (c *ServerCore) changeToFollowerLocked(term Term, force bool) {
	termChanged := c.state.updateCurrentTerm(term)
	if c.role.Role == RoleFollower && !force && !termChanged {
		return
	}

	c.stopRoleLocked()
	if c.role.Role == RoleLeader && c.role.Leader != nil {
		c.role.Leader.pending.FailAll(NotLeaderError{ServerID: string(c.id)})
		c.config.abort(NotLeaderError{ServerID: string(c.id)})
	}

	follower := newFollowerState(c.opts.electionTimeout, 2*c.opts.electionTimeout)
	c.role = &RoleState{Role: RoleFollower, Follower: follower}
	c.logger.Infof("server %s: became follower in term %d", c.id, c.state.currentTerm())
	if c.lifecycle.State() == Running {
		follower.run(c.ctx, c.onElectionTimeout)
	}
}

// onElectionTimeout fires a role change to Candidate; grounded on the
// teacher's electionLoop -> becomeCandidate transition.
func (c *ServerCore) onElectionTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lifecycle.State() != Running {
		return
	}
	c.becomeCandidateLocked()
}

// becomeCandidateLocked starts a new election: assigns a new term, votes for
// self, and dispatches parallel RequestVote RPCs. Callers must hold c.mu.
func (c *ServerCore) becomeCandidateLocked() {
	c.stopRoleLocked()
	newTerm := c.state.currentTerm() + 1
	c.state.updateCurrentTerm(newTerm)
	c.state.grantVote(c.id)
	if err := c.state.persistMetadata(); err != nil {
		c.logger.Fatalf("server %s: failed to persist metadata before election: %v", c.id, err)
	}

	candidate := newCandidateState(newTerm, c.id)
	c.role = &RoleState{Role: RoleCandidate, Candidate: candidate}
	c.logger.Infof("server %s: became candidate for term %d", c.id, newTerm)

	conf := c.config.current()
	lastEntry := TermIndex{Term: c.state.getLog().LastTerm(), Index: c.state.getLog().LastIndex()}
	go c.runElection(newTerm, candidate, conf, lastEntry)
}

func (c *ServerCore) runElection(term Term, candidate *CandidateState, conf ConfigurationView, lastEntry TermIndex) {
	members := conf.AllMembers()
	results := make(chan struct {
		peer PeerID
		resp *RequestVoteResponse
	}, len(members))

	for _, peer := range members {
		if peer == c.id {
			continue
		}
		go func(peer PeerID) {
			ctx, cancel := c.withinRPCTimeout()
			defer cancel()
			resp, err := c.transport.SendRequestVote(ctx, peer, &RequestVoteRequest{
				CandidateID: c.id, GroupID: c.groupID, Term: term, LastLogEntry: lastEntry,
			})
			if err != nil {
				return
			}
			results <- struct {
				peer PeerID
				resp *RequestVoteResponse
			}{peer, resp}
		}(peer)
	}

	deadline := time.After(2 * c.opts.electionTimeout)
	for i := 0; i < len(members)-1; i++ {
		select {
		case r := <-results:
			c.mu.Lock()
			if c.role.Role != RoleCandidate || c.role.Candidate != candidate {
				c.mu.Unlock()
				return
			}
			if r.resp.Term > term {
				c.changeToFollowerLocked(r.resp.Term, true)
				c.mu.Unlock()
				return
			}
			if r.resp.VoteGranted {
				candidate.recordVote(r.peer)
				if candidate.hasMajority(conf) {
					c.becomeLeaderLocked()
					c.mu.Unlock()
					return
				}
			}
			c.mu.Unlock()
		case <-deadline:
			c.mu.Lock()
			if c.role.Role == RoleCandidate && c.role.Candidate == candidate {
				c.becomeCandidateLocked()
			}
			c.mu.Unlock()
			return
		case <-c.ctx.Done():
			return
		}
	}
}

// becomeLeaderLocked installs a fresh LeaderState and spawns its appenders.
// Callers must hold c.mu.
func (c *ServerCore) becomeLeaderLocked() {
	conf := c.config.current()
	var followers []PeerID
	for _, peer := range conf.AllMembers() {
		if peer != c.id {
			followers = append(followers, peer)
		}
	}
	leader := newLeaderState(followers, c.state.getLog().LastIndex())
	c.role = &RoleState{Role: RoleLeader, Leader: leader}
	c.state.leader = c.id
	c.logger.Infof("server %s: became leader in term %d", c.id, c.state.currentTerm())

	noop := NewMetadataEntry(c.state.getLog().NextIndex(), c.state.currentTerm())
	_ = c.state.getLog().AppendEntry(noop)

	ctx, cancel := context.WithCancel(c.ctx)
	leader.cancel = cancel
	for _, peer := range conf.AllMembers() {
		if peer == c.id {
			continue
		}
		go c.runAppender(ctx, peer, leader)
	}
}
