package raft

import (
	"github.com/raftlayer/raft/internal/errors"
)

// ServerState holds the persisted election metadata, the log handle, the
// snapshot pointers, and the leader identity. Every method here is called
// with the peer mutex held by ServerCore; ServerState itself does no
// locking of its own.
type ServerState struct {
	serverID string

	term     Term
	votedFor PeerID
	leader   PeerID

	log             Log
	stateStorage    StateStorage
	snapshotStorage SnapshotStorage
	stateMachine    StateMachine

	latestSnapshot          *Snapshot
	latestInstalledSnapshot *Snapshot

	// inProgress is the optional (term, index) marker set while a
	// notify-mode snapshot install is outstanding; at most one at a time.
	inProgress *TermIndex
}

// newServerState constructs a ServerState from persisted metadata and a
// storage scan, per spec.md §3's "created on construction" lifecycle.
func newServerState(serverID string, log Log, stateStorage StateStorage, snapshotStorage SnapshotStorage, sm StateMachine) (*ServerState, error) {
	metadata, err := stateStorage.State()
	if err != nil {
		return nil, errors.WrapError(err, "failed to read persisted metadata")
	}
	latest, err := snapshotStorage.LastSnapshot()
	if err != nil {
		return nil, errors.WrapError(err, "failed to read latest snapshot")
	}
	return &ServerState{
		serverID:        serverID,
		term:            metadata.Term,
		votedFor:        metadata.VotedFor,
		log:             log,
		stateStorage:    stateStorage,
		snapshotStorage: snapshotStorage,
		stateMachine:    sm,
		latestSnapshot:  latest,
	}, nil
}

func (s *ServerState) currentTerm() Term { return s.term }
func (s *ServerState) leaderId() PeerID  { return s.leader }
func (s *ServerState) getLog() Log       { return s.log }

func (s *ServerState) getSnapshotIndex() LogIndex {
	if s.latestSnapshot == nil {
		return 0
	}
	return s.latestSnapshot.LastIncludedIndex
}

func (s *ServerState) getLatestSnapshot() *Snapshot { return s.latestSnapshot }

func (s *ServerState) getLatestInstalledSnapshot() *Snapshot { return s.latestInstalledSnapshot }

// updateCurrentTerm advances currentTerm to newTerm iff newTerm is strictly
// greater, resetting votedFor in the process, and reports whether anything
// changed so the caller knows whether a persist is owed.
func (s *ServerState) updateCurrentTerm(newTerm Term) bool {
	if newTerm <= s.term {
		return false
	}
	s.term = newTerm
	s.votedFor = ""
	s.leader = ""
	return true
}

// grantVote records a vote for candidate in the current term.
func (s *ServerState) grantVote(candidate PeerID) {
	s.votedFor = candidate
}

// recognizeLeader accepts leaderID as the leader of term iff term is at
// least currentTerm, and either the term just advanced or no leader (or the
// same leader) was already recognized this term.
func (s *ServerState) recognizeLeader(leaderID PeerID, term Term) bool {
	if term < s.term {
		return false
	}
	advanced := term > s.term
	if !advanced && s.leader != "" && s.leader != leaderID {
		return false
	}
	if advanced {
		s.updateCurrentTerm(term)
	}
	s.leader = leaderID
	return true
}

// recognizeCandidate accepts candidate as worthy of a vote in term iff term
// is at least currentTerm, and either the term just advanced or no vote (or
// the same candidate) was already cast this term.
func (s *ServerState) recognizeCandidate(candidate PeerID, term Term) bool {
	if term < s.term {
		return false
	}
	advanced := term > s.term
	if !advanced && s.votedFor != "" && s.votedFor != candidate {
		return false
	}
	if advanced {
		s.updateCurrentTerm(term)
	}
	return true
}

// isLogUpToDate implements Raft §5.4.1: candidateLast is at least as
// up-to-date as this peer's log iff it has a strictly later term, or an
// equal term and an index at least as large.
func (s *ServerState) isLogUpToDate(candidateLast TermIndex) bool {
	localLast := s.localLastEntry()
	if candidateLast.Term != localLast.Term {
		return candidateLast.Term > localLast.Term
	}
	return candidateLast.Index >= localLast.Index
}

func (s *ServerState) localLastEntry() TermIndex {
	return TermIndex{Term: s.log.LastTerm(), Index: s.log.LastIndex()}
}

// persistMetadata durably flushes (currentTerm, votedFor) before returning,
// satisfying spec.md §4.2's durability contract.
func (s *ServerState) persistMetadata() error {
	return s.stateStorage.SetState(PersistedMetadata{Term: s.term, VotedFor: s.votedFor})
}

// installSnapshot finalizes a chunk-mode install: the chunk file is
// finalized into a Snapshot, the log is compacted through its last included
// index, and the state machine is reloaded from it.
func (s *ServerState) installSnapshot(chunkFile SnapshotFile, term Term, index LogIndex) error {
	snapshot, err := chunkFile.Finalize(term, index)
	if err != nil {
		return errors.WrapError(err, "failed to finalize snapshot chunk install")
	}
	if err := s.reloadStateMachine(snapshot); err != nil {
		return err
	}
	return nil
}

// reloadStateMachine pauses the state machine, swaps in snapshot, and
// resumes, per the Open Question 3 pause-before-reload ordering fix: the
// pause always happens before the snapshot pointer is swapped and before
// Reload is invoked, closing the window the source left open.
func (s *ServerState) reloadStateMachine(snapshot *Snapshot) error {
	if err := s.stateMachine.pause(); err != nil {
		return errors.WrapError(err, "state machine failed to pause before reload")
	}
	s.latestInstalledSnapshot = snapshot
	s.latestSnapshot = snapshot
	if s.log.Contains(snapshot.LastIncludedIndex) {
		if err := s.log.Compact(snapshot.LastIncludedIndex); err != nil {
			return errors.WrapError(err, "failed to compact log after snapshot install")
		}
	} else {
		if err := s.log.DiscardEntries(snapshot.LastIncludedIndex, snapshot.LastIncludedTerm); err != nil {
			return errors.WrapError(err, "failed to discard log after snapshot install")
		}
	}
	if err := s.stateMachine.reload(snapshot); err != nil {
		return errors.WrapError(err, "state machine failed to reload from snapshot")
	}
	return nil
}

// appendLog appends a single StateMachineEntry for the given transaction
// context at the leader's next log index, returning the assigned index.
func (s *ServerState) appendLog(ctx *TransactionContext) (LogIndex, error) {
	entry := NewStateMachineEntry(s.log.NextIndex(), s.term, ctx.ClientID, ctx.CallID, ctx.Data)
	if err := s.log.AppendEntry(entry); err != nil {
		return 0, errors.WrapError(err, "failed to append log entry")
	}
	ctx.LogIndex = entry.Index
	ctx.Term = entry.Term
	return entry.Index, nil
}

// updateStateMachine advances commitIndex to min(leaderCommit,
// lastEntryIndex) and returns the new commit index, so the caller can wake
// the apply loop.
func (s *ServerState) updateStateMachine(leaderCommit LogIndex, commitIndex LogIndex) LogIndex {
	newCommit := leaderCommit
	if lastIdx := s.log.LastIndex(); newCommit > lastIdx {
		newCommit = lastIdx
	}
	if newCommit < commitIndex {
		return commitIndex
	}
	return newCommit
}
