package raft

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/raftlayer/raft/internal/errors"
)

var errSnapshotStoreNotOpen = errors.New("snapshot storage is not open")

// Snapshot represents a point-in-time capture of the replicated state
// machine at a given (term, index), replacing all prior log entries.
type Snapshot struct {
	LastIncludedIndex LogIndex
	LastIncludedTerm  Term
	Data              []byte
}

// NewSnapshot creates a new Snapshot with a defensive copy of data.
func NewSnapshot(lastIncludedIndex LogIndex, lastIncludedTerm Term, data []byte) *Snapshot {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	return &Snapshot{LastIncludedIndex: lastIncludedIndex, LastIncludedTerm: lastIncludedTerm, Data: dataCopy}
}

// SnapshotStorage is the component responsible for persistently storing
// whole snapshots of the state machine. ServerCore stages chunk-mode
// InstallSnapshot data through it and reads its latest snapshot at
// construction; the notify-mode install path does not use it, and ServerCore
// takes no snapshots or compactions of its own through it.
type SnapshotStorage interface {
	Open() error
	Close() error
	Replay() error

	// LastSnapshot returns the most recently saved snapshot, or nil if none
	// has been saved.
	LastSnapshot() (*Snapshot, error)

	// SaveSnapshot persists the provided snapshot.
	SaveSnapshot(snapshot *Snapshot) error

	// ListSnapshots returns every snapshot that has been persisted.
	ListSnapshots() ([]Snapshot, error)

	// OpenChunkFile opens (creating if necessary) the staging file backing
	// a chunk-mode snapshot install for the given (term, index), returning
	// a SnapshotFile the InstallSnapshot handler appends chunks to.
	OpenChunkFile(term Term, index LogIndex) (SnapshotFile, error)
}

// SnapshotFile is the chunk-mode install staging handle: successive
// SnapshotChunk payloads are written at their reported offset, and once the
// leader marks a chunk "done" the file is finalized into a Snapshot and
// installed via SaveSnapshot.
type SnapshotFile interface {
	// WriteChunk durably appends a chunk's bytes at the given offset.
	WriteChunk(offset int64, data []byte) error
	// Metadata reports how many bytes have been staged so far.
	Metadata() (bytesWritten int64, err error)
	// Finalize closes the staging file and returns the completed Snapshot.
	Finalize(term Term, index LogIndex) (*Snapshot, error)
	// Discard abandons a partially staged install (e.g. a stale leader, or
	// a conflicting concurrent install) and removes the staging file.
	Discard() error
	Close() error
}

// persistentSnapshotStorage implements SnapshotStorage, adapted from the
// teacher's persistentSnapshotStorage: whole snapshots are appended as
// length-prefixed protobuf records to a single append-only file.
type persistentSnapshotStorage struct {
	snapshots []Snapshot
	path      string
	file      *os.File
}

// NewSnapshotStorage creates a new SnapshotStorage rooted at the provided
// directory.
func NewSnapshotStorage(path string) SnapshotStorage {
	return &persistentSnapshotStorage{path: path}
}

func (p *persistentSnapshotStorage) Open() error {
	if p.file != nil {
		return nil
	}
	fileName := filepath.Join(p.path, "snapshots.bin")
	file, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return errors.WrapError(err, "failed to open snapshot storage")
	}
	p.file = file
	p.snapshots = make([]Snapshot, 0)
	return nil
}

func (p *persistentSnapshotStorage) Replay() error {
	if p.file == nil {
		return errSnapshotStoreNotOpen
	}
	reader := bufio.NewReader(p.file)
	for {
		snapshot, err := decodeSnapshotRecord(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.WrapError(err, "failed while replaying snapshot storage")
		}
		p.snapshots = append(p.snapshots, snapshot)
	}
	return nil
}

func (p *persistentSnapshotStorage) Close() error {
	if p.file == nil {
		return nil
	}
	if err := p.file.Close(); err != nil {
		return errors.WrapError(err, "failed to close snapshot storage")
	}
	p.snapshots = nil
	p.file = nil
	return nil
}

func (p *persistentSnapshotStorage) LastSnapshot() (*Snapshot, error) {
	if p.file == nil {
		return nil, errSnapshotStoreNotOpen
	}
	if len(p.snapshots) == 0 {
		return nil, nil
	}
	return &p.snapshots[len(p.snapshots)-1], nil
}

func (p *persistentSnapshotStorage) ListSnapshots() ([]Snapshot, error) {
	if p.file == nil {
		return nil, errSnapshotStoreNotOpen
	}
	return p.snapshots, nil
}

func (p *persistentSnapshotStorage) SaveSnapshot(snapshot *Snapshot) error {
	if p.file == nil {
		return errSnapshotStoreNotOpen
	}
	writer := bufio.NewWriter(p.file)
	if err := encodeSnapshotRecord(writer, snapshot); err != nil {
		return errors.WrapError(err, "failed to save snapshot")
	}
	if err := writer.Flush(); err != nil {
		return errors.WrapError(err, "failed to save snapshot")
	}
	if err := p.file.Sync(); err != nil {
		return errors.WrapError(err, "failed to save snapshot")
	}
	p.snapshots = append(p.snapshots, *snapshot)
	return nil
}

func (p *persistentSnapshotStorage) OpenChunkFile(term Term, index LogIndex) (SnapshotFile, error) {
	if p.file == nil {
		return nil, errSnapshotStoreNotOpen
	}
	name := filepath.Join(p.path, chunkFileName(term, index))
	file, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, errors.WrapError(err, "failed to open snapshot chunk staging file")
	}
	return &chunkSnapshotFile{file: file, storage: p}, nil
}

func chunkFileName(term Term, index LogIndex) string {
	return "chunk-" + itoa(uint64(term)) + "-" + itoa(uint64(index)) + ".tmp"
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// chunkSnapshotFile is the default SnapshotFile: chunks are written at their
// reported offset directly into a staging file on disk, so a chunk-mode
// install can be resumed across a leader failover without re-streaming
// already-received bytes.
type chunkSnapshotFile struct {
	file    *os.File
	storage *persistentSnapshotStorage
}

func (c *chunkSnapshotFile) WriteChunk(offset int64, data []byte) error {
	if _, err := c.file.WriteAt(data, offset); err != nil {
		return errors.WrapError(err, "failed to write snapshot chunk")
	}
	return c.file.Sync()
}

func (c *chunkSnapshotFile) Metadata() (int64, error) {
	info, err := c.file.Stat()
	if err != nil {
		return 0, errors.WrapError(err, "failed to stat snapshot chunk file")
	}
	return info.Size(), nil
}

func (c *chunkSnapshotFile) Finalize(term Term, index LogIndex) (*Snapshot, error) {
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return nil, errors.WrapError(err, "failed to finalize snapshot chunk file")
	}
	data, err := io.ReadAll(c.file)
	if err != nil {
		return nil, errors.WrapError(err, "failed to finalize snapshot chunk file")
	}
	name := c.file.Name()
	if err := c.file.Close(); err != nil {
		return nil, errors.WrapError(err, "failed to finalize snapshot chunk file")
	}
	if err := os.Remove(name); err != nil {
		return nil, errors.WrapError(err, "failed to remove snapshot chunk staging file")
	}
	snapshot := NewSnapshot(index, term, data)
	if err := c.storage.SaveSnapshot(snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (c *chunkSnapshotFile) Discard() error {
	name := c.file.Name()
	if err := c.file.Close(); err != nil {
		return errors.WrapError(err, "failed to discard snapshot chunk file")
	}
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return errors.WrapError(err, "failed to discard snapshot chunk file")
	}
	return nil
}

func (c *chunkSnapshotFile) Close() error {
	return c.file.Close()
}
