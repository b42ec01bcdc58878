package raft

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/raftlayer/raft/internal/errors"
)

var (
	errIndexDoesNotExist = errors.New("index does not exist")
	errLogNotOpen        = errors.New("log is not open")
)

// LogEntryType distinguishes the three kinds of entries a raft log may
// contain.
type LogEntryType uint32

const (
	// MetadataEntry carries no payload; it exists only to mark a position
	// in the log (e.g. a leader's no-op entry used to establish leader
	// completeness for the current term).
	MetadataEntry LogEntryType = iota
	// ConfigurationEntry carries a ConfigurationView change.
	ConfigurationEntry
	// StateMachineEntry carries a client write to be applied to the
	// user-supplied state machine.
	StateMachineEntry
)

// LogEntry is one entry in the replicated log.
type LogEntry struct {
	Index  LogIndex
	Term   Term
	Offset int64
	Type   LogEntryType

	// Set iff Type == StateMachineEntry.
	ClientID PeerID
	CallID   uint64
	Data     Message

	// Set iff Type == ConfigurationEntry.
	Peers   []PeerID
	Staging []PeerID
}

// NewStateMachineEntry creates a StateMachineEntry log entry.
func NewStateMachineEntry(index LogIndex, term Term, clientID PeerID, callID uint64, data Message) *LogEntry {
	return &LogEntry{Index: index, Term: term, Type: StateMachineEntry, ClientID: clientID, CallID: callID, Data: data}
}

// NewConfigurationEntry creates a ConfigurationEntry log entry.
func NewConfigurationEntry(index LogIndex, term Term, peers, staging []PeerID) *LogEntry {
	return &LogEntry{Index: index, Term: term, Type: ConfigurationEntry, Peers: peers, Staging: staging}
}

// NewMetadataEntry creates a no-op MetadataEntry log entry.
func NewMetadataEntry(index LogIndex, term Term) *LogEntry {
	return &LogEntry{Index: index, Term: term, Type: MetadataEntry}
}

// TermIndex returns the (term, index) pair for this entry.
func (e *LogEntry) TermIndex() TermIndex {
	return TermIndex{Term: e.Term, Index: e.Index}
}

// IsConflict reports whether e and other disagree about the term at their
// shared index, which per the log matching property means every entry from
// this index on must be considered inconsistent.
func (e *LogEntry) IsConflict(other *LogEntry) bool {
	return e.Index == other.Index && e.Term != other.Term
}

// Log is the durable, append-only component that stores the replicated log.
// Implementations need not be concurrent safe. Every method is synchronous;
// the ServerCore calls most of them under the peer mutex, but the follower's
// AppendEntries handler appends the received entries after releasing it.
type Log interface {
	Open() error
	Close() error
	Replay() error

	GetEntry(index LogIndex) (*LogEntry, error)
	AppendEntry(entry *LogEntry) error
	AppendEntries(entries []*LogEntry) error
	Truncate(index LogIndex) error
	DiscardEntries(index LogIndex, term Term) error
	Compact(index LogIndex) error
	Contains(index LogIndex) bool

	LastIndex() LogIndex
	LastTerm() Term
	NextIndex() LogIndex
	Size() int
}

// persistentLog is the default, file-backed Log implementation. It keeps
// every entry in memory alongside an append-only on-disk copy, matching the
// teacher's persistentLog: writes are length-prefixed protobuf records
// (see encoding.go). Truncate cuts the file in place; compaction and entry
// discarding rewrite it through a temp file and an atomic rename.
type persistentLog struct {
	entries []*LogEntry
	file    *os.File
	path    string
	logger  Logger
}

// NewLog creates a new Log backed by a file at the provided directory. The
// log is constructed before a ServerCore (and its configured Logger) exist,
// so it starts with a no-op logger; NewServerCore calls SetLogger once its
// own options are resolved.
func NewLog(path string) Log {
	return &persistentLog{path: path, logger: noopLogger{}}
}

// SetLogger installs the logger used for Warnf calls on truncation,
// compaction, and entry discarding.
func (l *persistentLog) SetLogger(logger Logger) {
	l.logger = logger
}

type noopLogger struct{}

func (noopLogger) Debug(args ...interface{})                 {}
func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Info(args ...interface{})                  {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Warn(args ...interface{})                  {}
func (noopLogger) Warnf(format string, args ...interface{})  {}
func (noopLogger) Error(args ...interface{})                 {}
func (noopLogger) Errorf(format string, args ...interface{}) {}
func (noopLogger) Fatal(args ...interface{})                 {}
func (noopLogger) Fatalf(format string, args ...interface{}) {}

func (l *persistentLog) Open() error {
	fileName := filepath.Join(l.path, "log.bin")
	file, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return errors.WrapError(err, "failed to open log")
	}
	l.file = file
	l.entries = make([]*LogEntry, 0)
	return nil
}

func (l *persistentLog) Replay() error {
	reader := bufio.NewReader(l.file)

	for {
		entry, err := decodeLogEntry(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.WrapError(err, "failed while replaying log")
		}
		l.entries = append(l.entries, entry)
	}

	// The log always contains at least one placeholder entry at index 0
	// so that GetEntry/Contains can index relative to entries[0].
	if len(l.entries) == 0 {
		entry := &LogEntry{}
		if err := encodeLogEntry(l.file, entry); err != nil {
			return errors.WrapError(err, "failed while replaying log")
		}
		if err := l.file.Sync(); err != nil {
			return errors.WrapError(err, "failed while replaying log")
		}
		l.entries = append(l.entries, entry)
	}

	return nil
}

func (l *persistentLog) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Close(); err != nil {
		return errors.WrapError(err, "failed to close log")
	}
	l.entries = nil
	l.file = nil
	return nil
}

func (l *persistentLog) GetEntry(index LogIndex) (*LogEntry, error) {
	if l.file == nil {
		return nil, errLogNotOpen
	}
	logIndex := index - l.entries[0].Index
	lastIndex := l.entries[len(l.entries)-1].Index
	if logIndex <= 0 || index > lastIndex {
		return nil, errIndexDoesNotExist
	}
	return l.entries[logIndex], nil
}

func (l *persistentLog) Contains(index LogIndex) bool {
	if len(l.entries) == 0 || index < l.entries[0].Index {
		return false
	}
	logIndex := index - l.entries[0].Index
	return !(logIndex <= 0 || int(logIndex) >= len(l.entries))
}

func (l *persistentLog) AppendEntry(entry *LogEntry) error {
	return l.AppendEntries([]*LogEntry{entry})
}

func (l *persistentLog) AppendEntries(entries []*LogEntry) error {
	if l.file == nil {
		return errLogNotOpen
	}
	for _, entry := range entries {
		offset, err := l.file.Seek(0, io.SeekCurrent)
		if err != nil {
			return errors.WrapError(err, "failed while appending entries to log")
		}
		entry.Offset = offset
		if err := encodeLogEntry(l.file, entry); err != nil {
			return errors.WrapError(err, "failed while appending entries to log")
		}
	}
	if err := l.file.Sync(); err != nil {
		return errors.WrapError(err, "failed while appending entries to log")
	}
	l.entries = append(l.entries, entries...)
	return nil
}

func (l *persistentLog) Truncate(index LogIndex) error {
	if l.file == nil {
		return errLogNotOpen
	}
	logIndex := index - l.entries[0].Index
	if logIndex <= 0 || int(logIndex) >= len(l.entries) {
		return errIndexDoesNotExist
	}

	size := l.entries[logIndex].Offset
	if err := l.file.Truncate(size); err != nil {
		return errors.WrapError(err, "failed to truncate log")
	}
	if err := l.file.Sync(); err != nil {
		return errors.WrapError(err, "failed to truncate log")
	}
	if _, err := l.file.Seek(size, io.SeekStart); err != nil {
		return errors.WrapError(err, "failed to truncate log")
	}

	l.entries = l.entries[:logIndex]
	l.logger.Warnf("log: truncated back to index %d", index-1)
	return nil
}

func (l *persistentLog) Compact(index LogIndex) error {
	if l.file == nil {
		return errLogNotOpen
	}
	logIndex := index - l.entries[0].Index
	if logIndex <= 0 || int(logIndex) >= len(l.entries) {
		return errIndexDoesNotExist
	}

	newEntries := make([]*LogEntry, len(l.entries)-int(logIndex))
	copy(newEntries, l.entries[logIndex:])

	tmpFile, err := os.CreateTemp(l.path, "tmp-")
	if err != nil {
		return errors.WrapError(err, "failed to compact log")
	}
	for _, entry := range newEntries {
		offset, err := tmpFile.Seek(0, io.SeekCurrent)
		if err != nil {
			return errors.WrapError(err, "failed to compact log")
		}
		entry.Offset = offset
		if err := encodeLogEntry(tmpFile, entry); err != nil {
			return errors.WrapError(err, "failed to compact log")
		}
	}
	if err := l.rename(tmpFile); err != nil {
		return errors.WrapError(err, "failed to compact log")
	}

	l.entries = newEntries
	l.logger.Warnf("log: compacted through index %d", index)
	return nil
}

func (l *persistentLog) DiscardEntries(index LogIndex, term Term) error {
	if l.file == nil {
		return errLogNotOpen
	}
	tmpFile, err := os.CreateTemp(l.path, "tmp-")
	if err != nil {
		return errors.WrapError(err, "failed to discard log entries")
	}
	entry := &LogEntry{Index: index, Term: term}
	if err := encodeLogEntry(tmpFile, entry); err != nil {
		return errors.WrapError(err, "failed to discard log entries")
	}
	if err := l.rename(tmpFile); err != nil {
		return errors.WrapError(err, "failed to discard log entries")
	}
	l.entries = []*LogEntry{entry}
	l.logger.Warnf("log: discarded all entries, now starting at (term=%d, index=%d)", term, index)
	return nil
}

func (l *persistentLog) LastTerm() Term {
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Term
}

func (l *persistentLog) LastIndex() LogIndex {
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Index
}

func (l *persistentLog) NextIndex() LogIndex {
	return l.LastIndex() + 1
}

func (l *persistentLog) Size() int {
	return len(l.entries)
}

func (l *persistentLog) rename(tmpFile *os.File) error {
	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := l.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpFile.Name(), l.file.Name()); err != nil {
		return err
	}

	fileName := filepath.Join(l.path, "log.bin")
	file, err := os.OpenFile(fileName, os.O_RDWR, 0o666)
	if err != nil {
		return err
	}
	l.file = file
	if _, err := l.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	return nil
}
