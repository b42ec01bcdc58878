package raft

import "github.com/google/uuid"

// NewClientID generates a fresh client identity for a session's lifetime,
// per spec.md §4.5's at-most-once requirement that (ClientID, CallID) pairs
// stay unique across process restarts.
func NewClientID() PeerID {
	return PeerID(uuid.NewString())
}
