package raft

import (
	"fmt"
)

// NotReadyError is returned when an operation is rejected because the
// server's LifeCycle is not in the RUNNING state.
type NotReadyError struct {
	ServerID string
	State    LifeCycleState
}

func (e NotReadyError) Error() string {
	return fmt.Sprintf("server %s is not ready: lifecycle state = %s", e.ServerID, e.State)
}

// GroupMismatchError is returned when a request names a group this server
// does not belong to.
type GroupMismatchError struct {
	ServerID    string
	LocalGroup  string
	RemoteGroup string
}

func (e GroupMismatchError) Error() string {
	return fmt.Sprintf("server %s belongs to group %s, not %s", e.ServerID, e.LocalGroup, e.RemoteGroup)
}

// NotLeaderError is returned when an operation that requires leadership is
// submitted to a server that is not the leader. KnownLeader is the best
// known hint, and may be empty. Peers lists the current configuration so a
// client can retry against another member.
type NotLeaderError struct {
	ServerID    string
	KnownLeader string
	Peers       []PeerID
}

func (e NotLeaderError) Error() string {
	return fmt.Sprintf("server %s is not the leader: knownLeader = %s", e.ServerID, e.KnownLeader)
}

// LeaderNotReadyError is returned when this server is the leader but has not
// yet completed the round trip required before it may safely serve reads or
// writes (no committed entry in the current term, or an expired lease).
type LeaderNotReadyError struct {
	ServerID string
}

func (e LeaderNotReadyError) Error() string {
	return fmt.Sprintf("server %s is leader but not yet ready", e.ServerID)
}

// StaleReadError is returned when a STALE_READ request names a minIndex
// beyond the server's current commit index.
type StaleReadError struct {
	ServerID    string
	MinIndex    LogIndex
	CommitIndex LogIndex
}

func (e StaleReadError) Error() string {
	return fmt.Sprintf("server %s cannot satisfy stale read at index %d: commitIndex = %d",
		e.ServerID, e.MinIndex, e.CommitIndex)
}

// StateMachineError wraps a failure raised by the user-supplied state
// machine while starting, applying, or querying a transaction.
type StateMachineError struct {
	ServerID string
	Cause    error
}

func (e StateMachineError) Error() string {
	return fmt.Sprintf("server %s: state machine failure: %v", e.ServerID, e.Cause)
}

func (e StateMachineError) Unwrap() error { return e.Cause }

// ReconfigurationInProgressError is returned when setConfigurationAsync is
// called while a previous reconfiguration has not yet committed.
type ReconfigurationInProgressError struct {
	ServerID string
}

func (e ReconfigurationInProgressError) Error() string {
	return fmt.Sprintf("server %s: a configuration change is already in progress", e.ServerID)
}

// InconsistencyError is an inter-peer-only error: validateEntrySequence
// returns it for a malformed AppendEntries entry sequence, and it must never
// be surfaced to a client. A log mismatch at the previous entry is reported
// with the AppendInconsistency result code instead.
type InconsistencyError struct {
	ServerID  string
	NextIndex LogIndex
}

func (e InconsistencyError) Error() string {
	return fmt.Sprintf("server %s: log inconsistency, nextIndex = %d", e.ServerID, e.NextIndex)
}

// TimeoutError indicates that an operation was interrupted or did not
// complete within the allotted time.
type TimeoutError struct {
	ServerID string
	Op       string
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("server %s: operation %q timed out", e.ServerID, e.Op)
}

// TransportError wraps a failure reported by the Transport collaborator.
type TransportError struct {
	ServerID string
	Peer     PeerID
	Cause    error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("server %s: transport failure talking to %s: %v", e.ServerID, e.Peer, e.Cause)
}

func (e TransportError) Unwrap() error { return e.Cause }

// InvalidOperationTypeError is returned when a client request names an
// operation type the core does not recognize.
type InvalidOperationTypeError struct {
	OperationType OperationType
}

func (e InvalidOperationTypeError) Error() string {
	return fmt.Sprintf("operation type %q is not supported", e.OperationType)
}
