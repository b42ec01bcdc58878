package raft

import (
	"context"
	"sync"
	"time"

	"github.com/raftlayer/raft/internal/errors"
)

// Status is a snapshot of a ServerCore's externally visible state, returned
// by Status() and used to populate GetGroupInfo's metrics surface.
type Status struct {
	ID          PeerID
	GroupID     GroupID
	Term        Term
	Role        Role
	LeaderID    PeerID
	CommitIndex LogIndex
	LastApplied LogIndex
	CommitInfos []CommitInfo
}

// ServerCore orchestrates the three inbound RPC handlers, the client-submit
// path, the apply loop, and role transitions. It exclusively owns
// ServerState, RoleState, RetryCache, CommitInfoCache, PendingRequests, and
// LifeCycle, per spec.md §3's ownership rules.
type ServerCore struct {
	mu sync.Mutex // the "peer mutex": serializes role transitions and RPC decision sections

	id      PeerID
	groupID GroupID

	lifecycle *LifeCycle
	state     *ServerState
	role      *RoleState
	config    *configurationManager

	retryCache  *RetryCache
	commitInfos *CommitInfoCache

	commitIndex LogIndex
	lastApplied LogIndex
	applyCond   *sync.Cond

	transport Transport
	logger    Logger
	metrics   MetricsSink
	opts      options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServerCore constructs a ServerCore in the NEW lifecycle state. peers is
// the group's initial configuration, including this server's own id.
func NewServerCore(
	id PeerID,
	groupID GroupID,
	peers []PeerID,
	log Log,
	stateStorage StateStorage,
	snapshotStorage SnapshotStorage,
	stateMachine StateMachine,
	transport Transport,
	opts ...Option,
) (*ServerCore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		logger, err := defaultLogger()
		if err != nil {
			return nil, errors.WrapError(err, "failed to construct default logger")
		}
		o.logger = logger
	}
	if o.metrics == nil {
		o.metrics = noopMetrics{}
	}

	core := &ServerCore{
		id:          id,
		groupID:     groupID,
		lifecycle:   NewLifeCycle(),
		config:      newConfigurationManager(peers),
		retryCache:  NewRetryCache(o.retryCacheCapacity, o.retryCacheTTL),
		commitInfos: NewCommitInfoCache(),
		transport:   transport,
		logger:      o.logger,
		metrics:     o.metrics,
		opts:        o,
	}
	core.applyCond = sync.NewCond(&core.mu)

	if settable, ok := log.(interface{ SetLogger(Logger) }); ok {
		settable.SetLogger(o.logger)
	}

	if err := log.Open(); err != nil {
		return nil, errors.WrapError(err, "failed to open log")
	}
	if err := stateStorage.Open(); err != nil {
		return nil, errors.WrapError(err, "failed to open state storage")
	}
	if err := snapshotStorage.Open(); err != nil {
		return nil, errors.WrapError(err, "failed to open snapshot storage")
	}
	if err := log.Replay(); err != nil {
		return nil, errors.WrapError(err, "failed to replay log")
	}
	if err := stateStorage.Replay(); err != nil {
		return nil, errors.WrapError(err, "failed to replay state storage")
	}
	if err := snapshotStorage.Replay(); err != nil {
		return nil, errors.WrapError(err, "failed to replay snapshot storage")
	}

	state, err := newServerState(string(id), log, stateStorage, snapshotStorage, stateMachine)
	if err != nil {
		return nil, err
	}
	core.state = state
	core.commitIndex = state.getSnapshotIndex()
	core.lastApplied = state.getSnapshotIndex()

	return core, nil
}

// Start transitions the core from NEW to STARTING, opens its background
// workers, and begins the follower election timer once RUNNING.
func (c *ServerCore) Start() error {
	if !c.lifecycle.StartTransition() {
		return errors.New("server already started")
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.mu.Lock()
	c.role = &RoleState{Role: RoleFollower, Follower: newFollowerState(c.opts.electionTimeout, 2*c.opts.electionTimeout)}
	c.mu.Unlock()

	c.wg.Add(1)
	go c.applyLoop()

	c.lifecycle.ToRunning()
	c.startFollowerTimer()

	c.logger.Infof("server %s started in group %s", c.id, c.groupID)
	return nil
}

// Stop transitions the core to CLOSING, drains background workers, and
// finally to CLOSED.
func (c *ServerCore) Stop() error {
	if !c.lifecycle.ToClosing() {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	c.stopRoleLocked()
	c.mu.Unlock()

	c.applyCond.Broadcast()
	c.wg.Wait()

	c.lifecycle.ToClosed()
	c.logger.Infof("server %s stopped", c.id)
	return nil
}

func (c *ServerCore) startFollowerTimer() {
	c.mu.Lock()
	follower := c.role.Follower
	c.mu.Unlock()
	if follower == nil {
		return
	}
	follower.run(c.ctx, c.onElectionTimeout)
}

// stopRoleLocked halts the current role variant's background work; callers
// must hold c.mu.
func (c *ServerCore) stopRoleLocked() {
	if c.role == nil {
		return
	}
	switch c.role.Role {
	case RoleFollower:
		if c.role.Follower != nil {
			c.role.Follower.stop()
		}
	case RoleCandidate:
		if c.role.Candidate != nil {
			c.role.Candidate.stop()
		}
	case RoleLeader:
		if c.role.Leader != nil {
			c.role.Leader.stop()
		}
	}
}

// Status returns a point-in-time snapshot of the core's externally visible
// state.
func (c *ServerCore) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		ID:          c.id,
		GroupID:     c.groupID,
		Term:        c.state.currentTerm(),
		Role:        c.role.Role,
		LeaderID:    c.state.leaderId(),
		CommitIndex: c.commitIndex,
		LastApplied: c.lastApplied,
		CommitInfos: c.commitInfos.Snapshot(),
	}
}

// GetGroupInfo returns the group's current role, commit infos, and
// composition, per spec.md §6's client-facing API.
func (c *ServerCore) GetGroupInfo() (Status, ConfigurationView) {
	return c.Status(), c.config.current()
}

func (c *ServerCore) reportMetrics() {
	c.metrics.SetTerm(c.state.currentTerm())
	c.metrics.SetCommitIndex(c.commitIndex)
	c.metrics.SetLastAppliedIndex(c.lastApplied)
	if c.role != nil {
		c.metrics.SetRole(c.role.Role.String())
	}
}

// withinRPCTimeout is a small helper used by appenders/RPC dispatch to bound
// a single round trip.
func (c *ServerCore) withinRPCTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.ctx, 5*time.Second)
}
