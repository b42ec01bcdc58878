package raft

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoStateMachine() StateMachine {
	return NewInMemoryStateMachine(func(m Message) Message { return m })
}

func TestInMemoryStateMachineStartAndApplyTransaction(t *testing.T) {
	sm := echoStateMachine()

	ctx, err := sm.startTransaction(ClientRequest{ClientID: "c1", CallID: 1, Message: Message("put:a=1")})
	require.NoError(t, err)
	require.Equal(t, PeerID("c1"), ctx.ClientID)

	ctx = sm.applyTransactionSerial(ctx)
	ctx.LogIndex, ctx.Term = 1, 1

	future := sm.applyTransaction(ctx)
	reply, err := future.Await(context.Background())
	require.NoError(t, err)
	require.True(t, bytes.Equal(reply, Message("put:a=1")))
}

func TestInMemoryStateMachineQuery(t *testing.T) {
	sm := echoStateMachine()
	reply, err := sm.query(Message("get:a"))
	require.NoError(t, err)
	require.Equal(t, Message("get:a"), reply)

	reply, err = sm.queryStale(Message("get:a"), 0)
	require.NoError(t, err)
	require.Equal(t, Message("get:a"), reply)
}

func TestInMemoryStateMachineSnapshotRoundTrip(t *testing.T) {
	sm := echoStateMachine()

	snap, err := sm.getLatestSnapshot()
	require.NoError(t, err)
	require.Nil(t, snap)

	sm.notifyIndexUpdate(2, 7)

	snap, err = sm.getLatestSnapshot()
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, LogIndex(7), snap.LastIncludedIndex)
	require.Equal(t, Term(2), snap.LastIncludedTerm)

	require.NoError(t, sm.pause())
	require.NoError(t, sm.reload(NewSnapshot(10, 3, nil)))

	snap, err = sm.getLatestSnapshot()
	require.NoError(t, err)
	require.Equal(t, LogIndex(10), snap.LastIncludedIndex)
	require.Equal(t, Term(3), snap.LastIncludedTerm)
}

func TestInMemoryStateMachineNeedSnapshot(t *testing.T) {
	sm := echoStateMachine()
	require.False(t, sm.needSnapshot(100))
	require.True(t, sm.needSnapshot(20000))
}

func TestInMemoryStateMachineNotifyInstallSnapshotFromLeader(t *testing.T) {
	sm := echoStateMachine()
	future := sm.notifyInstallSnapshotFromLeader(TermIndex{Term: 4, Index: 12})
	result, err := future.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, TermIndex{Term: 4, Index: 12}, result)
}

func TestInMemoryStateMachineNotifyExtendedNoLeaderIsNoop(t *testing.T) {
	sm := echoStateMachine()
	sm.notifyExtendedNoLeader("group-1", RoleInfo{Role: "follower", Term: 1})
}
