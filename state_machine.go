package raft

import (
	"sync"
)

// RoleInfo is the narrow role snapshot passed to notifyExtendedNoLeader, so
// a state machine can decide whether to alert on an extended leaderless
// period without reaching back into ServerCore.
type RoleInfo struct {
	Role     string
	Term     Term
	LeaderID PeerID
}

// TransactionContext carries a client write through startTransaction,
// applyTransactionSerial, and applyTransaction. The leader constructs one
// from the originating ClientRequest; the apply loop on a follower
// synthesizes one from the replicated LogEntry, since ClientRequest itself
// is never replicated.
type TransactionContext struct {
	ClientID PeerID
	CallID   uint64
	LogIndex LogIndex
	Term     Term
	Data     Message

	// state lets a StateMachine implementation stash work computed in
	// startTransaction/applyTransactionSerial for applyTransaction to pick
	// back up, without the core knowing its shape.
	state interface{}
}

// StateMachine is the user-supplied replicated state machine. Implementations
// must be safe for the concurrency pattern the apply loop and notify paths
// use: applyTransaction calls arrive strictly in log-index order and never
// overlap, but query/queryStale may be called concurrently with
// applyTransaction.
type StateMachine interface {
	// startTransaction validates and stages a client write before it is
	// appended to the log, returning a context threaded through to
	// applyTransaction once the entry commits. An error here means the
	// entry is never appended.
	startTransaction(req ClientRequest) (*TransactionContext, error)

	// applyTransactionSerial runs strictly in log order but before
	// concurrent apply work, for side effects that must observe a total
	// order across entries (e.g. sequence number assignment).
	applyTransactionSerial(ctx *TransactionContext) *TransactionContext

	// applyTransaction applies ctx to the state machine, returning a future
	// of the client-visible reply payload.
	applyTransaction(ctx *TransactionContext) *Future[Message]

	// query serves a leader-local linearizable-ish read (see the read-lease
	// hardening in ServerCore).
	query(msg Message) (Message, error)

	// queryStale serves a read that may run on any peer once its commit
	// index reaches minIndex.
	queryStale(msg Message, minIndex LogIndex) (Message, error)

	// notifyIndexUpdate informs the state machine that a no-op/metadata
	// entry committed at (term, index), without any payload to apply.
	notifyIndexUpdate(term Term, index LogIndex)

	// notifyInstallSnapshotFromLeader is invoked in notify-mode
	// InstallSnapshot once the leader has announced a snapshot the state
	// machine must fetch and install out of band. The returned future
	// resolves to the (term, index) actually installed.
	notifyInstallSnapshotFromLeader(firstAvailable TermIndex) *Future[TermIndex]

	// notifyExtendedNoLeader informs the state machine that this group has
	// gone without a recognized leader for an unusually long time.
	notifyExtendedNoLeader(group GroupID, role RoleInfo)

	// pause quiesces the state machine ahead of a snapshot install.
	pause() error

	// reload resumes the state machine after a snapshot has been swapped
	// in, re-reading state from the snapshot the reload path provides.
	reload(snapshot *Snapshot) error

	// getLatestSnapshot returns the most recent snapshot the state machine
	// can produce, or nil if none is available (e.g. the log is small
	// enough that no compaction has occurred).
	getLatestSnapshot() (*Snapshot, error)

	// needSnapshot reports whether a new snapshot should be taken given the
	// current log size.
	needSnapshot(logSize int) bool
}

// inMemoryStateMachine is a reference StateMachine that treats every write
// payload as an opaque blob applied via a user callback. It stores no applied
// data itself (its data map is never written), and its snapshots carry only
// the last applied (term, index), with no data.
// It exists for tests and as a worked example of the interface above, in
// the spirit of the teacher's own small test state machines.
type inMemoryStateMachine struct {
	mu       sync.Mutex
	applyFn  func(Message) Message
	data     map[string][]byte
	lastTerm Term
	lastIdx  LogIndex
}

// NewInMemoryStateMachine creates a StateMachine that hands every committed
// payload to applyFn and returns its result as the client-visible reply.
func NewInMemoryStateMachine(applyFn func(Message) Message) StateMachine {
	return &inMemoryStateMachine{applyFn: applyFn, data: make(map[string][]byte)}
}

func (s *inMemoryStateMachine) startTransaction(req ClientRequest) (*TransactionContext, error) {
	return &TransactionContext{ClientID: req.ClientID, CallID: req.CallID, Data: req.Message}, nil
}

func (s *inMemoryStateMachine) applyTransactionSerial(ctx *TransactionContext) *TransactionContext {
	return ctx
}

func (s *inMemoryStateMachine) applyTransaction(ctx *TransactionContext) *Future[Message] {
	future := NewFuture[Message]()
	s.mu.Lock()
	reply := s.applyFn(ctx.Data)
	s.lastTerm, s.lastIdx = ctx.Term, ctx.LogIndex
	s.mu.Unlock()
	future.Complete(reply)
	return future
}

func (s *inMemoryStateMachine) query(msg Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyFn(msg), nil
}

func (s *inMemoryStateMachine) queryStale(msg Message, _ LogIndex) (Message, error) {
	return s.query(msg)
}

func (s *inMemoryStateMachine) notifyIndexUpdate(term Term, index LogIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTerm, s.lastIdx = term, index
}

func (s *inMemoryStateMachine) notifyInstallSnapshotFromLeader(firstAvailable TermIndex) *Future[TermIndex] {
	return CompletedFuture(firstAvailable)
}

func (s *inMemoryStateMachine) notifyExtendedNoLeader(GroupID, RoleInfo) {}

func (s *inMemoryStateMachine) pause() error { return nil }

func (s *inMemoryStateMachine) reload(snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot != nil {
		s.lastTerm, s.lastIdx = snapshot.LastIncludedTerm, snapshot.LastIncludedIndex
	}
	return nil
}

func (s *inMemoryStateMachine) getLatestSnapshot() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastIdx == 0 {
		return nil, nil
	}
	return NewSnapshot(s.lastIdx, s.lastTerm, nil), nil
}

func (s *inMemoryStateMachine) needSnapshot(logSize int) bool {
	return logSize > 10000
}
