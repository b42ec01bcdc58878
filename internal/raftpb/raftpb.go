// Package raftpb holds the wire/persistence message types described by
// raftpb.proto. They are hand-authored rather than produced by protoc (see
// DESIGN.md), but implement the same legacy proto.Message surface
// (Reset/String/ProtoMessage) that protoc-gen-go emits, so
// github.com/golang/protobuf/proto can marshal and unmarshal them using
// their protobuf struct tags.
package raftpb

import "fmt"

type LogEntry struct {
	Index     uint64 `protobuf:"varint,1,opt,name=index,proto3" json:"index,omitempty"`
	Term      uint64 `protobuf:"varint,2,opt,name=term,proto3" json:"term,omitempty"`
	Offset    int64  `protobuf:"varint,3,opt,name=offset,proto3" json:"offset,omitempty"`
	Data      []byte `protobuf:"bytes,4,opt,name=data,proto3" json:"data,omitempty"`
	EntryType uint32 `protobuf:"varint,5,opt,name=entry_type,json=entryType,proto3" json:"entry_type,omitempty"`
}

func (m *LogEntry) Reset()         { *m = LogEntry{} }
func (m *LogEntry) String() string { return fmt.Sprintf("%+v", *m) }
func (*LogEntry) ProtoMessage()    {}

type PersistentMetadata struct {
	Term     uint64 `protobuf:"varint,1,opt,name=term,proto3" json:"term,omitempty"`
	VotedFor string `protobuf:"bytes,2,opt,name=voted_for,json=votedFor,proto3" json:"voted_for,omitempty"`
}

func (m *PersistentMetadata) Reset()         { *m = PersistentMetadata{} }
func (m *PersistentMetadata) String() string { return fmt.Sprintf("%+v", *m) }
func (*PersistentMetadata) ProtoMessage()    {}

type Snapshot struct {
	LastIncludedIndex uint64 `protobuf:"varint,1,opt,name=last_included_index,json=lastIncludedIndex,proto3" json:"last_included_index,omitempty"`
	LastIncludedTerm  uint64 `protobuf:"varint,2,opt,name=last_included_term,json=lastIncludedTerm,proto3" json:"last_included_term,omitempty"`
	Data              []byte `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty"`
}

func (m *Snapshot) Reset()         { *m = Snapshot{} }
func (m *Snapshot) String() string { return fmt.Sprintf("%+v", *m) }
func (*Snapshot) ProtoMessage()    {}

type RequestVoteRequest struct {
	CandidateId  string `protobuf:"bytes,1,opt,name=candidate_id,json=candidateId,proto3" json:"candidate_id,omitempty"`
	GroupId      string `protobuf:"bytes,2,opt,name=group_id,json=groupId,proto3" json:"group_id,omitempty"`
	Term         uint64 `protobuf:"varint,3,opt,name=term,proto3" json:"term,omitempty"`
	LastLogIndex uint64 `protobuf:"varint,4,opt,name=last_log_index,json=lastLogIndex,proto3" json:"last_log_index,omitempty"`
	LastLogTerm  uint64 `protobuf:"varint,5,opt,name=last_log_term,json=lastLogTerm,proto3" json:"last_log_term,omitempty"`
}

func (m *RequestVoteRequest) Reset()         { *m = RequestVoteRequest{} }
func (m *RequestVoteRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*RequestVoteRequest) ProtoMessage()    {}

type RequestVoteResponse struct {
	Term           uint64 `protobuf:"varint,1,opt,name=term,proto3" json:"term,omitempty"`
	VoteGranted    bool   `protobuf:"varint,2,opt,name=vote_granted,json=voteGranted,proto3" json:"vote_granted,omitempty"`
	ShouldShutdown bool   `protobuf:"varint,3,opt,name=should_shutdown,json=shouldShutdown,proto3" json:"should_shutdown,omitempty"`
}

func (m *RequestVoteResponse) Reset()         { *m = RequestVoteResponse{} }
func (m *RequestVoteResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*RequestVoteResponse) ProtoMessage()    {}

type CommitInfo struct {
	Peer           string `protobuf:"bytes,1,opt,name=peer,proto3" json:"peer,omitempty"`
	CommittedIndex uint64 `protobuf:"varint,2,opt,name=committed_index,json=committedIndex,proto3" json:"committed_index,omitempty"`
}

func (m *CommitInfo) Reset()         { *m = CommitInfo{} }
func (m *CommitInfo) String() string { return fmt.Sprintf("%+v", *m) }
func (*CommitInfo) ProtoMessage()    {}

type AppendEntriesRequest struct {
	LeaderId     string        `protobuf:"bytes,1,opt,name=leader_id,json=leaderId,proto3" json:"leader_id,omitempty"`
	GroupId      string        `protobuf:"bytes,2,opt,name=group_id,json=groupId,proto3" json:"group_id,omitempty"`
	Term         uint64        `protobuf:"varint,3,opt,name=term,proto3" json:"term,omitempty"`
	PrevLogIndex uint64        `protobuf:"varint,4,opt,name=prev_log_index,json=prevLogIndex,proto3" json:"prev_log_index,omitempty"`
	PrevLogTerm  uint64        `protobuf:"varint,5,opt,name=prev_log_term,json=prevLogTerm,proto3" json:"prev_log_term,omitempty"`
	Entries      []*LogEntry   `protobuf:"bytes,6,rep,name=entries,proto3" json:"entries,omitempty"`
	LeaderCommit uint64        `protobuf:"varint,7,opt,name=leader_commit,json=leaderCommit,proto3" json:"leader_commit,omitempty"`
	Initializing bool          `protobuf:"varint,8,opt,name=initializing,proto3" json:"initializing,omitempty"`
	CommitInfos  []*CommitInfo `protobuf:"bytes,9,rep,name=commit_infos,json=commitInfos,proto3" json:"commit_infos,omitempty"`
}

func (m *AppendEntriesRequest) Reset()         { *m = AppendEntriesRequest{} }
func (m *AppendEntriesRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*AppendEntriesRequest) ProtoMessage()    {}

type AppendEntriesResponse struct {
	Term            uint64 `protobuf:"varint,1,opt,name=term,proto3" json:"term,omitempty"`
	FollowerCommit  uint64 `protobuf:"varint,2,opt,name=follower_commit,json=followerCommit,proto3" json:"follower_commit,omitempty"`
	NextIndex       uint64 `protobuf:"varint,3,opt,name=next_index,json=nextIndex,proto3" json:"next_index,omitempty"`
	Result          int32  `protobuf:"varint,4,opt,name=result,proto3" json:"result,omitempty"`
	FollowerApplied uint64 `protobuf:"varint,5,opt,name=follower_applied,json=followerApplied,proto3" json:"follower_applied,omitempty"`
}

func (m *AppendEntriesResponse) Reset()         { *m = AppendEntriesResponse{} }
func (m *AppendEntriesResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*AppendEntriesResponse) ProtoMessage()    {}

type SnapshotChunk struct {
	LastIncludedIndex uint64 `protobuf:"varint,1,opt,name=last_included_index,json=lastIncludedIndex,proto3" json:"last_included_index,omitempty"`
	LastIncludedTerm  uint64 `protobuf:"varint,2,opt,name=last_included_term,json=lastIncludedTerm,proto3" json:"last_included_term,omitempty"`
	Offset            int64  `protobuf:"varint,3,opt,name=offset,proto3" json:"offset,omitempty"`
	Bytes             []byte `protobuf:"bytes,4,opt,name=bytes,proto3" json:"bytes,omitempty"`
	Done              bool   `protobuf:"varint,5,opt,name=done,proto3" json:"done,omitempty"`
}

func (m *SnapshotChunk) Reset()         { *m = SnapshotChunk{} }
func (m *SnapshotChunk) String() string { return fmt.Sprintf("%+v", *m) }
func (*SnapshotChunk) ProtoMessage()    {}

type SnapshotNotification struct {
	FirstAvailableTerm  uint64 `protobuf:"varint,1,opt,name=first_available_term,json=firstAvailableTerm,proto3" json:"first_available_term,omitempty"`
	FirstAvailableIndex uint64 `protobuf:"varint,2,opt,name=first_available_index,json=firstAvailableIndex,proto3" json:"first_available_index,omitempty"`
}

func (m *SnapshotNotification) Reset()         { *m = SnapshotNotification{} }
func (m *SnapshotNotification) String() string { return fmt.Sprintf("%+v", *m) }
func (*SnapshotNotification) ProtoMessage()    {}

type InstallSnapshotRequest struct {
	LeaderId     string                `protobuf:"bytes,1,opt,name=leader_id,json=leaderId,proto3" json:"leader_id,omitempty"`
	GroupId      string                `protobuf:"bytes,2,opt,name=group_id,json=groupId,proto3" json:"group_id,omitempty"`
	Term         uint64                `protobuf:"varint,3,opt,name=term,proto3" json:"term,omitempty"`
	Chunk        *SnapshotChunk        `protobuf:"bytes,4,opt,name=chunk,proto3" json:"chunk,omitempty"`
	Notification *SnapshotNotification `protobuf:"bytes,5,opt,name=notification,proto3" json:"notification,omitempty"`
}

func (m *InstallSnapshotRequest) Reset()         { *m = InstallSnapshotRequest{} }
func (m *InstallSnapshotRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*InstallSnapshotRequest) ProtoMessage()    {}

type InstallSnapshotResponse struct {
	Term       uint64 `protobuf:"varint,1,opt,name=term,proto3" json:"term,omitempty"`
	ChunkIndex int64  `protobuf:"varint,2,opt,name=chunk_index,json=chunkIndex,proto3" json:"chunk_index,omitempty"`
	Result     int32  `protobuf:"varint,3,opt,name=result,proto3" json:"result,omitempty"`
}

func (m *InstallSnapshotResponse) Reset()         { *m = InstallSnapshotResponse{} }
func (m *InstallSnapshotResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*InstallSnapshotResponse) ProtoMessage()    {}
