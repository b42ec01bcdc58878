package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateStorageSetGet(t *testing.T) {
	tmpDir := t.TempDir()
	storage := NewStateStorage(tmpDir)

	require.NoError(t, storage.Open())

	metadata := PersistedMetadata{Term: 1, VotedFor: "test"}
	require.NoError(t, storage.SetState(metadata))

	require.NoError(t, storage.Close())
	require.NoError(t, storage.Open())
	require.NoError(t, storage.Replay())
	defer func() { require.NoError(t, storage.Close()) }()

	recovered, err := storage.State()

	require.NoError(t, err)
	require.Equal(t, metadata, recovered)
}
