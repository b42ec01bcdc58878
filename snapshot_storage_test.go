package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotStore(t *testing.T) {
	tmpDir := t.TempDir()
	snapshotStore := NewSnapshotStorage(tmpDir)

	require.NoError(t, snapshotStore.Open())
	require.NoError(t, snapshotStore.Replay())
	defer func() { require.NoError(t, snapshotStore.Close()) }()

	snapshot1 := NewSnapshot(1, 1, []byte("test1"))
	require.NoError(t, snapshotStore.SaveSnapshot(snapshot1))

	last1, err := snapshotStore.LastSnapshot()
	require.NoError(t, err)
	require.Equal(t, snapshot1, last1)

	snapshot2 := NewSnapshot(2, 2, []byte("test2"))
	require.NoError(t, snapshotStore.SaveSnapshot(snapshot2))

	last2, err := snapshotStore.LastSnapshot()
	require.NoError(t, err)
	require.Equal(t, snapshot2, last2)

	snapshots, err := snapshotStore.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	require.NoError(t, snapshotStore.Close())
	require.NoError(t, snapshotStore.Open())
	require.NoError(t, snapshotStore.Replay())

	last2, err = snapshotStore.LastSnapshot()
	require.NoError(t, err)
	require.Equal(t, snapshot2, last2)

	snapshots, err = snapshotStore.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
}

func TestSnapshotChunkFile(t *testing.T) {
	tmpDir := t.TempDir()
	snapshotStore := NewSnapshotStorage(tmpDir)
	require.NoError(t, snapshotStore.Open())
	defer func() { require.NoError(t, snapshotStore.Close()) }()

	chunkFile, err := snapshotStore.OpenChunkFile(3, 100)
	require.NoError(t, err)

	payload := []byte("chunked-snapshot-bytes")
	require.NoError(t, chunkFile.WriteChunk(0, payload))

	written, err := chunkFile.Metadata()
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), written)

	snapshot, err := chunkFile.Finalize(3, 100)
	require.NoError(t, err)
	require.Equal(t, payload, snapshot.Data)
	require.Equal(t, Term(3), snapshot.LastIncludedTerm)
	require.Equal(t, LogIndex(100), snapshot.LastIncludedIndex)

	last, err := snapshotStore.LastSnapshot()
	require.NoError(t, err)
	require.Equal(t, snapshot, last)
}
