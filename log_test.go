package raft

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openLog(t *testing.T) Log {
	t.Helper()
	l := NewLog(t.TempDir())
	require.NoError(t, l.Open())
	require.NoError(t, l.Replay())
	return l
}

func TestLogReplayCreatesPlaceholderEntry(t *testing.T) {
	l := openLog(t)
	defer l.Close()

	require.Equal(t, 1, l.Size())
	require.Equal(t, LogIndex(0), l.LastIndex())
	require.Equal(t, LogIndex(1), l.NextIndex())
	require.False(t, l.Contains(0))
}

func TestLogAppendAndGetEntry(t *testing.T) {
	l := openLog(t)
	defer l.Close()

	entry := NewStateMachineEntry(l.NextIndex(), 1, "client-a", 1, Message("hello"))
	require.NoError(t, l.AppendEntry(entry))

	require.Equal(t, LogIndex(1), l.LastIndex())
	require.True(t, l.Contains(1))

	got, err := l.GetEntry(1)
	require.NoError(t, err)
	require.Equal(t, PeerID("client-a"), got.ClientID)
	require.Equal(t, Message("hello"), got.Data)

	_, err = l.GetEntry(2)
	require.Error(t, err)
}

func TestLogAppendEntriesBatch(t *testing.T) {
	l := openLog(t)
	defer l.Close()

	entries := []*LogEntry{
		NewStateMachineEntry(1, 1, "a", 1, Message("one")),
		NewStateMachineEntry(2, 1, "a", 2, Message("two")),
		NewStateMachineEntry(3, 1, "a", 3, Message("three")),
	}
	require.NoError(t, l.AppendEntries(entries))
	require.Equal(t, LogIndex(3), l.LastIndex())
	require.Equal(t, 4, l.Size()) // placeholder + 3
}

func TestLogTruncate(t *testing.T) {
	l := openLog(t)
	defer l.Close()

	require.NoError(t, l.AppendEntries([]*LogEntry{
		NewStateMachineEntry(1, 1, "a", 1, Message("one")),
		NewStateMachineEntry(2, 1, "a", 2, Message("two")),
		NewStateMachineEntry(3, 2, "a", 3, Message("three")),
	}))

	require.NoError(t, l.Truncate(2))
	require.Equal(t, LogIndex(1), l.LastIndex())
	require.False(t, l.Contains(2))
}

func TestLogCompact(t *testing.T) {
	l := openLog(t)
	defer l.Close()

	require.NoError(t, l.AppendEntries([]*LogEntry{
		NewStateMachineEntry(1, 1, "a", 1, Message("one")),
		NewStateMachineEntry(2, 1, "a", 2, Message("two")),
		NewStateMachineEntry(3, 2, "a", 3, Message("three")),
	}))

	require.NoError(t, l.Compact(2))
	require.Equal(t, 2, l.Size())
	require.True(t, l.Contains(3))
	require.False(t, l.Contains(1))
}

func TestLogDiscardEntries(t *testing.T) {
	l := openLog(t)
	defer l.Close()

	require.NoError(t, l.AppendEntries([]*LogEntry{
		NewStateMachineEntry(1, 1, "a", 1, Message("one")),
		NewStateMachineEntry(2, 1, "a", 2, Message("two")),
	}))

	require.NoError(t, l.DiscardEntries(5, 3))
	require.Equal(t, LogIndex(5), l.LastIndex())
	require.Equal(t, Term(3), l.LastTerm())
	require.Equal(t, 1, l.Size())
}

func TestLogPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	l := NewLog(dir)
	require.NoError(t, l.Open())
	require.NoError(t, l.Replay())

	require.NoError(t, l.AppendEntry(NewStateMachineEntry(1, 1, "a", 1, Message("one"))))
	require.NoError(t, l.Close())

	reopened := NewLog(dir)
	require.NoError(t, reopened.Open())
	require.NoError(t, reopened.Replay())
	defer reopened.Close()

	require.Equal(t, LogIndex(1), reopened.LastIndex())
	entry, err := reopened.GetEntry(1)
	require.NoError(t, err)
	require.Equal(t, Message("one"), entry.Data)
}

func TestLogEntryIsConflict(t *testing.T) {
	a := &LogEntry{Index: 5, Term: 1}
	b := &LogEntry{Index: 5, Term: 2}
	c := &LogEntry{Index: 6, Term: 2}

	require.True(t, a.IsConflict(b))
	require.False(t, a.IsConflict(c))
}
