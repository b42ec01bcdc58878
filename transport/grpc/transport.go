// Package grpc is the reference Transport implementation for raft,
// grounded on the teacher's pkg/ sketch of a gRPC-backed transport and the
// wire messages in internal/raftpb. It dials peers as plain grpc.ClientConn
// connections and invokes the three raft RPCs by method path, since
// internal/raftpb's hand-authored legacy protobuf messages (see
// internal/raftpb/raftpb.go) have no protoc-generated client/server stubs to
// wrap: grpc.ClientConn.Invoke and a manually built grpc.ServiceDesc work
// directly off any proto.Message, which is all grpc's default codec
// requires.
package grpc

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/raftlayer/raft"
	"github.com/raftlayer/raft/internal/raftpb"
)

const serviceName = "raftlayer.raft.RaftService"

var (
	methodRequestVote     = "/" + serviceName + "/RequestVote"
	methodAppendEntries   = "/" + serviceName + "/AppendEntries"
	methodInstallSnapshot = "/" + serviceName + "/InstallSnapshot"
)

// Transport is the gRPC-backed raft.Transport.
type Transport struct {
	mu    sync.Mutex
	conns map[raft.PeerID]*grpc.ClientConn
	addrs map[raft.PeerID]string
	self  string
}

// NewTransport creates a Transport that reports localAddress from
// LocalAddress; it opens no listener itself.
func NewTransport(localAddress string, peers map[raft.PeerID]string) *Transport {
	addrs := make(map[raft.PeerID]string, len(peers))
	for id, addr := range peers {
		addrs[id] = addr
	}
	return &Transport{conns: make(map[raft.PeerID]*grpc.ClientConn), addrs: addrs, self: localAddress}
}

func (t *Transport) LocalAddress() string { return t.self }

func (t *Transport) AddPeers(peers map[raft.PeerID]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, addr := range peers {
		t.addrs[id] = addr
	}
	return nil
}

type unknownPeerError raft.PeerID

func (e unknownPeerError) Error() string { return "transport/grpc: unknown peer " + string(e) }

func (t *Transport) conn(peer raft.PeerID) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[peer]; ok {
		return c, nil
	}
	addr, ok := t.addrs[peer]
	if !ok {
		return nil, raft.TransportError{Peer: peer, Cause: unknownPeerError(peer)}
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, raft.TransportError{Peer: peer, Cause: err}
	}
	t.conns[peer] = conn
	return conn, nil
}

func (t *Transport) SendRequestVote(ctx context.Context, peer raft.PeerID, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error) {
	conn, err := t.conn(peer)
	if err != nil {
		return nil, err
	}
	wire := &raftpb.RequestVoteRequest{
		CandidateId:  string(req.CandidateID),
		GroupId:      string(req.GroupID),
		Term:         uint64(req.Term),
		LastLogIndex: uint64(req.LastLogEntry.Index),
		LastLogTerm:  uint64(req.LastLogEntry.Term),
	}
	reply := &raftpb.RequestVoteResponse{}
	if err := conn.Invoke(ctx, methodRequestVote, wire, reply); err != nil {
		return nil, raft.TransportError{Peer: peer, Cause: err}
	}
	return &raft.RequestVoteResponse{
		Term:           raft.Term(reply.Term),
		VoteGranted:    reply.VoteGranted,
		ShouldShutdown: reply.ShouldShutdown,
	}, nil
}

func (t *Transport) SendAppendEntries(ctx context.Context, peer raft.PeerID, req *raft.AppendEntriesRequest) (*raft.AppendEntriesResponse, error) {
	conn, err := t.conn(peer)
	if err != nil {
		return nil, err
	}
	wire := &raftpb.AppendEntriesRequest{
		LeaderId:     string(req.LeaderID),
		GroupId:      string(req.GroupID),
		Term:         uint64(req.Term),
		PrevLogIndex: uint64(req.Previous.Index),
		PrevLogTerm:  uint64(req.Previous.Term),
		Entries:      toWireEntries(req.Entries),
		LeaderCommit: uint64(req.LeaderCommit),
		Initializing: req.Initializing,
		CommitInfos:  toWireCommitInfos(req.CommitInfos),
	}
	reply := &raftpb.AppendEntriesResponse{}
	if err := conn.Invoke(ctx, methodAppendEntries, wire, reply); err != nil {
		return nil, raft.TransportError{Peer: peer, Cause: err}
	}
	return &raft.AppendEntriesResponse{
		Term:            raft.Term(reply.Term),
		FollowerCommit:  raft.LogIndex(reply.FollowerCommit),
		FollowerApplied: raft.LogIndex(reply.FollowerApplied),
		NextIndex:       raft.LogIndex(reply.NextIndex),
		Result:          raft.AppendEntriesResult(reply.Result),
	}, nil
}

func (t *Transport) SendInstallSnapshot(ctx context.Context, peer raft.PeerID, req *raft.InstallSnapshotRequest) (*raft.InstallSnapshotResponse, error) {
	conn, err := t.conn(peer)
	if err != nil {
		return nil, err
	}
	wire := &raftpb.InstallSnapshotRequest{
		LeaderId: string(req.LeaderID),
		GroupId:  string(req.GroupID),
		Term:     uint64(req.Term),
	}
	if req.Chunk != nil {
		wire.Chunk = &raftpb.SnapshotChunk{
			LastIncludedIndex: uint64(req.Chunk.LastIncludedIndex),
			LastIncludedTerm:  uint64(req.Chunk.LastIncludedTerm),
			Offset:            req.Chunk.Offset,
			Bytes:             req.Chunk.Data,
			Done:              req.Chunk.Done,
		}
	}
	if req.Notification != nil {
		wire.Notification = &raftpb.SnapshotNotification{
			FirstAvailableTerm:  uint64(req.Notification.FirstAvailableTerm),
			FirstAvailableIndex: uint64(req.Notification.FirstAvailableIndex),
		}
	}
	reply := &raftpb.InstallSnapshotResponse{}
	if err := conn.Invoke(ctx, methodInstallSnapshot, wire, reply); err != nil {
		return nil, raft.TransportError{Peer: peer, Cause: err}
	}
	return &raft.InstallSnapshotResponse{
		Term:       raft.Term(reply.Term),
		Result:     raft.InstallSnapshotResult(reply.Result),
		ChunkIndex: reply.ChunkIndex,
	}, nil
}

// Close tears down every outbound connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for _, c := range t.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func toWireCommitInfos(infos []raft.CommitInfo) []*raftpb.CommitInfo {
	if infos == nil {
		return nil
	}
	out := make([]*raftpb.CommitInfo, len(infos))
	for i, ci := range infos {
		out[i] = &raftpb.CommitInfo{Peer: string(ci.Peer), CommittedIndex: uint64(ci.CommittedIndex)}
	}
	return out
}

func fromWireCommitInfos(infos []*raftpb.CommitInfo) []raft.CommitInfo {
	if infos == nil {
		return nil
	}
	out := make([]raft.CommitInfo, len(infos))
	for i, ci := range infos {
		out[i] = raft.CommitInfo{Peer: raft.PeerID(ci.Peer), CommittedIndex: raft.LogIndex(ci.CommittedIndex)}
	}
	return out
}
