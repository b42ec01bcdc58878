package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServerState(t *testing.T) *ServerState {
	t.Helper()
	dir := t.TempDir()

	log := NewLog(dir)
	require.NoError(t, log.Open())
	require.NoError(t, log.Replay())
	t.Cleanup(func() { log.Close() })

	stateStorage := NewStateStorage(dir)
	require.NoError(t, stateStorage.Open())
	require.NoError(t, stateStorage.Replay())
	t.Cleanup(func() { stateStorage.Close() })

	snapshotStorage := NewSnapshotStorage(dir)
	require.NoError(t, snapshotStorage.Open())
	require.NoError(t, snapshotStorage.Replay())
	t.Cleanup(func() { snapshotStorage.Close() })

	sm := echoStateMachine()

	state, err := newServerState("server-1", log, stateStorage, snapshotStorage, sm)
	require.NoError(t, err)
	return state
}

func TestServerStateUpdateCurrentTerm(t *testing.T) {
	s := newTestServerState(t)

	require.False(t, s.updateCurrentTerm(0))
	require.Equal(t, Term(0), s.currentTerm())

	s.grantVote("peer-a")
	require.True(t, s.updateCurrentTerm(5))
	require.Equal(t, Term(5), s.currentTerm())
	require.Equal(t, PeerID(""), s.leaderId())
}

func TestServerStateRecognizeLeader(t *testing.T) {
	s := newTestServerState(t)

	require.True(t, s.recognizeLeader("leader-a", 1))
	require.Equal(t, PeerID("leader-a"), s.leaderId())
	require.Equal(t, Term(1), s.currentTerm())

	// Same term, different leader: rejected.
	require.False(t, s.recognizeLeader("leader-b", 1))
	require.Equal(t, PeerID("leader-a"), s.leaderId())

	// Stale term: rejected.
	require.False(t, s.recognizeLeader("leader-c", 0))

	// Later term: accepted, replaces leader.
	require.True(t, s.recognizeLeader("leader-b", 2))
	require.Equal(t, PeerID("leader-b"), s.leaderId())
}

func TestServerStateRecognizeCandidate(t *testing.T) {
	s := newTestServerState(t)

	require.True(t, s.recognizeCandidate("cand-a", 1))
	s.grantVote("cand-a")

	// Same term, different candidate: rejected.
	require.False(t, s.recognizeCandidate("cand-b", 1))

	// Same term, same candidate: accepted (idempotent retry).
	require.True(t, s.recognizeCandidate("cand-a", 1))

	// Later term resets the vote.
	require.True(t, s.recognizeCandidate("cand-b", 2))
}

func TestServerStateIsLogUpToDate(t *testing.T) {
	s := newTestServerState(t)
	require.NoError(t, s.log.AppendEntry(NewStateMachineEntry(1, 3, "c", 1, nil)))

	require.True(t, s.isLogUpToDate(TermIndex{Term: 4, Index: 0}))
	require.True(t, s.isLogUpToDate(TermIndex{Term: 3, Index: 1}))
	require.False(t, s.isLogUpToDate(TermIndex{Term: 3, Index: 0}))
	require.False(t, s.isLogUpToDate(TermIndex{Term: 2, Index: 9}))
}

func TestServerStatePersistMetadata(t *testing.T) {
	s := newTestServerState(t)
	s.updateCurrentTerm(7)
	s.grantVote("peer-z")

	require.NoError(t, s.persistMetadata())

	reread, err := s.stateStorage.State()
	require.NoError(t, err)
	require.Equal(t, Term(7), reread.Term)
	require.Equal(t, PeerID("peer-z"), reread.VotedFor)
}

func TestServerStateAppendLog(t *testing.T) {
	s := newTestServerState(t)
	s.term = 3

	ctx := &TransactionContext{ClientID: "c1", CallID: 9, Data: Message("payload")}
	index, err := s.appendLog(ctx)
	require.NoError(t, err)
	require.Equal(t, LogIndex(1), index)
	require.Equal(t, LogIndex(1), ctx.LogIndex)
	require.Equal(t, Term(3), ctx.Term)

	entry, err := s.log.GetEntry(1)
	require.NoError(t, err)
	require.Equal(t, Message("payload"), entry.Data)
}

func TestServerStateUpdateStateMachine(t *testing.T) {
	s := newTestServerState(t)
	require.NoError(t, s.log.AppendEntries([]*LogEntry{
		NewStateMachineEntry(1, 1, "c", 1, nil),
		NewStateMachineEntry(2, 1, "c", 2, nil),
	}))

	// leaderCommit beyond the log is capped at LastIndex.
	require.Equal(t, LogIndex(2), s.updateStateMachine(5, 0))
	// leaderCommit below the existing commitIndex never regresses it.
	require.Equal(t, LogIndex(2), s.updateStateMachine(1, 2))
	require.Equal(t, LogIndex(1), s.updateStateMachine(1, 0))
}

func TestServerStateReloadStateMachine(t *testing.T) {
	s := newTestServerState(t)
	require.NoError(t, s.log.AppendEntries([]*LogEntry{
		NewStateMachineEntry(1, 1, "c", 1, nil),
		NewStateMachineEntry(2, 1, "c", 2, nil),
	}))

	snapshot := NewSnapshot(1, 1, []byte("snap"))
	require.NoError(t, s.reloadStateMachine(snapshot))

	require.Equal(t, snapshot, s.getLatestSnapshot())
	require.Equal(t, snapshot, s.getLatestInstalledSnapshot())
	require.True(t, s.log.Contains(2))
	require.False(t, s.log.Contains(1))
}

func TestServerStateReloadStateMachineDiscardsWhenAhead(t *testing.T) {
	s := newTestServerState(t)
	require.NoError(t, s.log.AppendEntry(NewStateMachineEntry(1, 1, "c", 1, nil)))

	snapshot := NewSnapshot(50, 4, []byte("snap"))
	require.NoError(t, s.reloadStateMachine(snapshot))

	require.Equal(t, LogIndex(50), s.log.LastIndex())
	require.Equal(t, Term(4), s.log.LastTerm())
}
