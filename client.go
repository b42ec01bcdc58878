package raft

import "time"

// SubmitClientRequestAsync dispatches req per its OperationType, as
// spec.md §4.5 describes, returning a Future the caller awaits for the
// Reply.
func (c *ServerCore) SubmitClientRequestAsync(req ClientRequest) *Future[Reply] {
	if err := c.lifecycle.CheckRunning(string(c.id)); err != nil {
		return CompletedFuture(Reply{Success: false, Err: err})
	}

	switch req.Type {
	case StaleRead:
		return c.submitStaleRead(req)
	case Read:
		return c.submitRead(req)
	case Watch:
		return c.submitWatch(req)
	case Write:
		return c.submitWrite(req)
	default:
		return CompletedFuture(Reply{Success: false, Err: InvalidOperationTypeError{OperationType: req.Type}})
	}
}

func (c *ServerCore) submitStaleRead(req ClientRequest) *Future[Reply] {
	c.mu.Lock()
	commitIndex := c.commitIndex
	c.mu.Unlock()

	if commitIndex < req.MinIndex {
		return CompletedFuture(Reply{Success: false, Err: StaleReadError{ServerID: string(c.id), MinIndex: req.MinIndex, CommitIndex: commitIndex}})
	}
	msg, err := c.state.stateMachine.queryStale(req.Message, req.MinIndex)
	if err != nil {
		return CompletedFuture(Reply{Success: false, Err: StateMachineError{ServerID: string(c.id), Cause: err}})
	}
	return CompletedFuture(Reply{Success: true, Message: msg})
}

func (c *ServerCore) submitRead(req ClientRequest) *Future[Reply] {
	if reply := c.checkLeaderState(req); reply != nil {
		return CompletedFuture(*reply)
	}

	// Read-lease hardening (SPEC_FULL.md §12, Open Question 1): a READ is
	// only served locally while the leader's lease, renewed on every
	// majority AppendEntries round, has not expired. This guards against
	// serving a stale read after a silent loss of leadership.
	c.mu.Lock()
	ready := c.role.Role == RoleLeader && c.role.Leader != nil && c.role.Leader.isReady() && c.leaseValidLocked()
	c.mu.Unlock()
	if !ready {
		return CompletedFuture(Reply{Success: false, Err: LeaderNotReadyError{ServerID: string(c.id)}})
	}

	msg, err := c.state.stateMachine.query(req.Message)
	if err != nil {
		return CompletedFuture(Reply{Success: false, Err: StateMachineError{ServerID: string(c.id), Cause: err}})
	}
	return CompletedFuture(Reply{Success: true, Message: msg})
}

// leaseValidLocked reports whether the leader's read lease is still valid,
// i.e. a majority-quorum AppendEntries round has completed within the
// current election timeout window. Callers must hold c.mu.
func (c *ServerCore) leaseValidLocked() bool {
	if c.role.Leader == nil {
		return false
	}
	return time.Since(c.role.Leader.leaseRenewedAt()) < c.opts.electionTimeout
}

func (c *ServerCore) submitWatch(req ClientRequest) *Future[Reply] {
	if reply := c.checkLeaderState(req); reply != nil {
		return CompletedFuture(*reply)
	}
	future := NewFuture[Reply]()
	c.mu.Lock()
	leader := c.role.Leader
	c.mu.Unlock()
	if leader == nil {
		return CompletedFuture(Reply{Success: false, Err: NotLeaderError{ServerID: string(c.id)}})
	}
	leader.pending.AddWatch(&WatchRequest{Index: req.WatchIndex, Level: req.ReplicationLevel, Future: future})
	return future
}

func (c *ServerCore) submitWrite(req ClientRequest) *Future[Reply] {
	if reply := c.checkLeaderState(req); reply != nil {
		return CompletedFuture(*reply)
	}

	if entry, ok := c.retryCache.Get(req.ClientID, req.CallID); ok {
		switch entry.State {
		case Pending, CompletedOK:
			return entry.Future
		case CompletedFail:
			// fall through to re-admit: a failed attempt may succeed on retry
		}
	}

	entry := c.retryCache.Reserve(req.ClientID, req.CallID)

	ctx, err := c.state.stateMachine.startTransaction(req)
	if err != nil {
		reply := Reply{Success: false, Err: StateMachineError{ServerID: string(c.id), Cause: err}}
		c.retryCache.Complete(req.ClientID, req.CallID, reply)
		return entry.Future
	}

	return c.appendTransaction(ctx, entry)
}

// appendTransaction implements spec.md §4.5's appendTransaction: re-checks
// leadership under the peer mutex, appends the entry, and enqueues a
// PendingRequest resolved by the apply loop.
func (c *ServerCore) appendTransaction(ctx *TransactionContext, entry *RetryCacheEntry) *Future[Reply] {
	c.mu.Lock()
	if c.role.Role != RoleLeader || c.role.Leader == nil {
		c.mu.Unlock()
		reply := Reply{Success: false, Err: NotLeaderError{ServerID: string(c.id), KnownLeader: string(c.state.leaderId())}}
		c.retryCache.Complete(ctx.ClientID, ctx.CallID, reply)
		return entry.Future
	}

	index, err := c.state.appendLog(ctx)
	if err != nil {
		leader := c.role.Leader
		c.mu.Unlock()
		reply := Reply{Success: false, Err: StateMachineError{ServerID: string(c.id), Cause: err}}
		c.retryCache.Complete(ctx.ClientID, ctx.CallID, reply)
		go c.requestStepDown(leader)
		return entry.Future
	}

	leader := c.role.Leader
	leader.pending.Add(index, ctx, entry.Future)
	c.mu.Unlock()

	return entry.Future
}

// requestStepDown forces this peer back to Follower, the safety fence
// spec.md §4.5 calls for when a state machine refuses a pre-append stage
// after already being granted leadership for this term.
func (c *ServerCore) requestStepDown(leader *LeaderState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.role.Leader == leader {
		c.changeToFollowerLocked(c.state.currentTerm(), true)
	}
}

// checkLeaderState implements spec.md §4.5's checkLeaderState: returns
// non-nil (short-circuiting) when the request cannot proceed against this
// peer as-is.
func (c *ServerCore) checkLeaderState(req ClientRequest) *Reply {
	if err := c.lifecycle.CheckRunning(string(c.id)); err != nil {
		return &Reply{Success: false, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.role.Role != RoleLeader {
		conf := c.config.current()
		var hint PeerID
		for _, p := range conf.Peers {
			if p != c.id {
				hint = p
				break
			}
		}
		known := c.state.leaderId()
		if known != "" {
			hint = known
		}
		return &Reply{Success: false, Err: NotLeaderError{ServerID: string(c.id), KnownLeader: string(hint), Peers: conf.Peers}}
	}

	if entry, ok := c.retryCache.Get(req.ClientID, req.CallID); ok && entry.State == CompletedOK {
		reply, err := entry.Future.Await(c.ctx)
		if err == nil {
			return &reply
		}
	}

	if c.role.Leader == nil || !c.role.Leader.isReady() {
		return &Reply{Success: false, Err: LeaderNotReadyError{ServerID: string(c.id)}}
	}

	return nil
}

// SetConfigurationAsync implements spec.md §4.7.
func (c *ServerCore) SetConfigurationAsync(newPeers []PeerID) *Future[Reply] {
	c.mu.Lock()
	if c.role.Role != RoleLeader || c.role.Leader == nil {
		c.mu.Unlock()
		return CompletedFuture(Reply{Success: false, Err: NotLeaderError{ServerID: string(c.id)}})
	}
	conf := c.config.current()
	if !conf.Stable() {
		c.mu.Unlock()
		return CompletedFuture(Reply{Success: false, Err: ReconfigurationInProgressError{ServerID: string(c.id)}})
	}
	if samePeerSet(conf.Peers, newPeers) {
		c.mu.Unlock()
		return CompletedFuture(Reply{Success: true})
	}
	index := c.state.getLog().NextIndex()
	entry := NewConfigurationEntry(index, c.state.currentTerm(), conf.Peers, newPeers)
	if err := c.state.getLog().AppendEntry(entry); err != nil {
		c.mu.Unlock()
		return CompletedFuture(Reply{Success: false, Err: StateMachineError{ServerID: string(c.id), Cause: err}})
	}
	future, err := c.config.beginStaging(newPeers, index)
	c.mu.Unlock()
	if err != nil {
		return CompletedFuture(Reply{Success: false, Err: err})
	}
	return future
}

func samePeerSet(a, b []PeerID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[PeerID]bool, len(a))
	for _, p := range a {
		set[p] = true
	}
	for _, p := range b {
		if !set[p] {
			return false
		}
	}
	return true
}
