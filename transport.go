package raft

import "context"

// RequestVoteRequest is the wire shape of a RequestVote RPC.
type RequestVoteRequest struct {
	CandidateID   PeerID
	GroupID       GroupID
	Term          Term
	LastLogEntry  TermIndex
}

// RequestVoteResponse is the wire shape of a RequestVote reply.
type RequestVoteResponse struct {
	Term          Term
	VoteGranted   bool
	ShouldShutdown bool
}

// AppendEntriesResult enumerates the inter-peer-only result codes an
// AppendEntries reply may carry.
type AppendEntriesResult int

const (
	AppendSuccess AppendEntriesResult = iota
	AppendNotLeader
	AppendInconsistency
)

// AppendEntriesRequest is the wire shape of an AppendEntries RPC.
type AppendEntriesRequest struct {
	LeaderID     PeerID
	GroupID      GroupID
	Term         Term
	Previous     TermIndex
	LeaderCommit LogIndex
	Entries      []*LogEntry
	CommitInfos  []CommitInfo
	Initializing bool
}

// AppendEntriesResponse is the wire shape of an AppendEntries reply.
type AppendEntriesResponse struct {
	Term          Term
	FollowerCommit LogIndex
	// FollowerApplied is the follower's own apply-loop position at the time
	// of the reply, piggybacked so the leader can track per-peer apply
	// progress for the MajorityApplied/AllApplied replication levels (§3,
	// §4.5) the same way CommitInfos tracks per-peer commit progress.
	FollowerApplied LogIndex
	NextIndex     LogIndex
	Result        AppendEntriesResult
}

// InstallSnapshotResult enumerates the result codes an InstallSnapshot reply
// may carry.
type InstallSnapshotResult int

const (
	InstallSuccess InstallSnapshotResult = iota
	InstallNotLeader
	InstallInProgress
	InstallAlreadyInstalled
	InstallConfMismatch
)

// SnapshotChunk carries one piece of a chunk-mode InstallSnapshot transfer.
type SnapshotChunk struct {
	LastIncludedTerm  Term
	LastIncludedIndex LogIndex
	Offset            int64
	Data              []byte
	Done              bool
}

// SnapshotNotification is the notify-mode InstallSnapshot payload: a hint
// that a snapshot exists at or after (FirstAvailableTerm,
// FirstAvailableIndex) that the follower's state machine must fetch and
// install out of band.
type SnapshotNotification struct {
	FirstAvailableTerm  Term
	FirstAvailableIndex LogIndex
}

// InstallSnapshotRequest is the wire shape of an InstallSnapshot RPC; chunk
// and notification are mutually exclusive depending on installSnapshotEnabled.
type InstallSnapshotRequest struct {
	LeaderID     PeerID
	GroupID      GroupID
	Term         Term
	Chunk        *SnapshotChunk
	Notification *SnapshotNotification
}

// InstallSnapshotResponse is the wire shape of an InstallSnapshot reply.
type InstallSnapshotResponse struct {
	Term      Term
	Result    InstallSnapshotResult
	ChunkIndex int64
}

// Transport is the consumed collaborator that moves the three inbound RPCs
// between peers. ServerCore does not call AddPeers: a configuration change
// records only the new peer ids and registers no addresses with the
// transport.
type Transport interface {
	SendRequestVote(ctx context.Context, peer PeerID, req *RequestVoteRequest) (*RequestVoteResponse, error)
	SendAppendEntries(ctx context.Context, peer PeerID, req *AppendEntriesRequest) (*AppendEntriesResponse, error)
	SendInstallSnapshot(ctx context.Context, peer PeerID, req *InstallSnapshotRequest) (*InstallSnapshotResponse, error)

	// AddPeers registers additional peer addresses. ServerCore does not
	// call it, including during a configuration change.
	AddPeers(peers map[PeerID]string) error

	// LocalAddress returns the address this transport listens on.
	LocalAddress() string
}
