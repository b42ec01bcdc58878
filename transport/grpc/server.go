package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/raftlayer/raft"
	"github.com/raftlayer/raft/internal/raftpb"
)

// Server adapts a *raft.ServerCore to the hand-built RaftService
// grpc.ServiceDesc below, so it can be registered on a *grpc.Server without
// any protoc-generated server stub.
type Server struct {
	core *raft.ServerCore
}

// NewServer wraps core for registration via Register.
func NewServer(core *raft.ServerCore) *Server {
	return &Server{core: core}
}

func (s *Server) requestVote(ctx context.Context, wire *raftpb.RequestVoteRequest) (*raftpb.RequestVoteResponse, error) {
	req := &raft.RequestVoteRequest{
		CandidateID: raft.PeerID(wire.CandidateId),
		GroupID:     raft.GroupID(wire.GroupId),
		Term:        raft.Term(wire.Term),
		LastLogEntry: raft.TermIndex{
			Term:  raft.Term(wire.LastLogTerm),
			Index: raft.LogIndex(wire.LastLogIndex),
		},
	}
	resp, err := s.core.RequestVote(req)
	if err != nil {
		return nil, err
	}
	return &raftpb.RequestVoteResponse{
		Term:           uint64(resp.Term),
		VoteGranted:    resp.VoteGranted,
		ShouldShutdown: resp.ShouldShutdown,
	}, nil
}

func (s *Server) appendEntries(ctx context.Context, wire *raftpb.AppendEntriesRequest) (*raftpb.AppendEntriesResponse, error) {
	req := &raft.AppendEntriesRequest{
		LeaderID: raft.PeerID(wire.LeaderId),
		GroupID:  raft.GroupID(wire.GroupId),
		Term:     raft.Term(wire.Term),
		Previous: raft.TermIndex{
			Term:  raft.Term(wire.PrevLogTerm),
			Index: raft.LogIndex(wire.PrevLogIndex),
		},
		LeaderCommit: raft.LogIndex(wire.LeaderCommit),
		Entries:      fromWireEntries(wire.Entries),
		Initializing: wire.Initializing,
		CommitInfos:  fromWireCommitInfos(wire.CommitInfos),
	}
	resp, err := s.core.AppendEntries(req)
	if err != nil {
		return nil, err
	}
	return &raftpb.AppendEntriesResponse{
		Term:            uint64(resp.Term),
		FollowerCommit:  uint64(resp.FollowerCommit),
		FollowerApplied: uint64(resp.FollowerApplied),
		NextIndex:       uint64(resp.NextIndex),
		Result:          int32(resp.Result),
	}, nil
}

func (s *Server) installSnapshot(ctx context.Context, wire *raftpb.InstallSnapshotRequest) (*raftpb.InstallSnapshotResponse, error) {
	req := &raft.InstallSnapshotRequest{
		LeaderID: raft.PeerID(wire.LeaderId),
		GroupID:  raft.GroupID(wire.GroupId),
		Term:     raft.Term(wire.Term),
	}
	if wire.Chunk != nil {
		req.Chunk = &raft.SnapshotChunk{
			LastIncludedTerm:  raft.Term(wire.Chunk.LastIncludedTerm),
			LastIncludedIndex: raft.LogIndex(wire.Chunk.LastIncludedIndex),
			Offset:            wire.Chunk.Offset,
			Data:              wire.Chunk.Bytes,
			Done:              wire.Chunk.Done,
		}
	}
	if wire.Notification != nil {
		req.Notification = &raft.SnapshotNotification{
			FirstAvailableTerm:  raft.Term(wire.Notification.FirstAvailableTerm),
			FirstAvailableIndex: raft.LogIndex(wire.Notification.FirstAvailableIndex),
		}
	}
	// ServerCore.InstallSnapshot does not use its SnapshotFile argument in
	// either mode: chunk mode opens the staging file from its own snapshot
	// storage, and notify mode stages no file.
	resp, err := s.core.InstallSnapshot(req, nil)
	if err != nil {
		return nil, err
	}
	return &raftpb.InstallSnapshotResponse{
		Term:       uint64(resp.Term),
		ChunkIndex: resp.ChunkIndex,
		Result:     int32(resp.Result),
	}, nil
}

// ServiceDesc is the hand-constructed replacement for what
// protoc-gen-go-grpc would otherwise emit for raftpb.proto's RaftService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestVote", Handler: requestVoteHandler},
		{MethodName: "AppendEntries", Handler: appendEntriesHandler},
		{MethodName: "InstallSnapshot", Handler: installSnapshotHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "raftpb.proto",
}

func requestVoteHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(raftpb.RequestVoteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.requestVote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRequestVote}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.requestVote(ctx, req.(*raftpb.RequestVoteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func appendEntriesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(raftpb.AppendEntriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.appendEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAppendEntries}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.appendEntries(ctx, req.(*raftpb.AppendEntriesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func installSnapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(raftpb.InstallSnapshotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*Server)
	if interceptor == nil {
		return s.installSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodInstallSnapshot}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return s.installSnapshot(ctx, req.(*raftpb.InstallSnapshotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Register attaches srv's RaftService handlers to grpcServer.
func Register(grpcServer *grpc.Server, srv *Server) {
	grpcServer.RegisterService(&ServiceDesc, srv)
}
