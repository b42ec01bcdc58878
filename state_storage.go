package raft

import (
	"io"
	"os"
	"path/filepath"

	"github.com/raftlayer/raft/internal/errors"
)

var errStateStorageNotOpen = errors.New("state storage is not open")

// PersistedMetadata is the (currentTerm, votedFor) pair ServerState must
// durably flush before any RPC that reveals the new value is sent.
type PersistedMetadata struct {
	Term     Term
	VotedFor PeerID
}

// StateStorage is the component responsible for persistently storing the
// election metadata.
type StateStorage interface {
	Open() error
	Close() error
	Replay() error

	// SetState persists the provided metadata. The storage must be open,
	// otherwise an error is returned.
	SetState(metadata PersistedMetadata) error

	// State returns the most recently persisted metadata. If there is no
	// pre-existing state, the zero value is returned.
	State() (PersistedMetadata, error)
}

// persistentStateStorage implements StateStorage with an atomic-rename
// durability contract, matching the teacher's persistentStateStorage: writes
// go to a temp file that is synced and renamed over the live file so a crash
// can never observe a partially written record.
type persistentStateStorage struct {
	path  string
	file  *os.File
	state PersistedMetadata
}

// NewStateStorage creates a new StateStorage at the provided directory.
func NewStateStorage(path string) StateStorage {
	return &persistentStateStorage{path: path}
}

func (p *persistentStateStorage) Open() error {
	fileName := filepath.Join(p.path, "state.bin")
	file, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return errors.WrapError(err, "failed to open state storage file")
	}
	p.file = file
	return nil
}

func (p *persistentStateStorage) Close() error {
	if p.file == nil {
		return nil
	}
	if err := p.file.Close(); err != nil {
		return errors.WrapError(err, "failed to close state storage file")
	}
	p.state = PersistedMetadata{}
	p.file = nil
	return nil
}

func (p *persistentStateStorage) Replay() error {
	if p.file == nil {
		return errStateStorageNotOpen
	}
	state, err := decodePersistentMetadata(p.file)
	if err != nil && err != io.EOF {
		return errors.WrapError(err, "failed while replaying state storage")
	}
	p.state = state
	return nil
}

func (p *persistentStateStorage) SetState(metadata PersistedMetadata) error {
	if p.file == nil {
		return errStateStorageNotOpen
	}

	tmpFile, err := os.CreateTemp(p.path, "tmp-")
	if err != nil {
		return errors.WrapError(err, "failed while persisting state")
	}
	if err := encodePersistentMetadata(tmpFile, &metadata); err != nil {
		return errors.WrapError(err, "failed while persisting state")
	}
	if err := tmpFile.Sync(); err != nil {
		return errors.WrapError(err, "failed while persisting state")
	}
	if err := tmpFile.Close(); err != nil {
		return errors.WrapError(err, "failed while persisting state")
	}
	if err := p.file.Close(); err != nil {
		return errors.WrapError(err, "failed while persisting state")
	}
	if err := os.Rename(tmpFile.Name(), filepath.Join(p.path, "state.bin")); err != nil {
		return errors.WrapError(err, "failed while persisting state")
	}

	fileName := filepath.Join(p.path, "state.bin")
	p.file, err = os.OpenFile(fileName, os.O_RDWR, 0o666)
	if err != nil {
		return errors.WrapError(err, "failed while persisting state")
	}
	if _, err := p.file.Seek(0, io.SeekEnd); err != nil {
		return errors.WrapError(err, "failed while persisting state")
	}

	p.state = metadata
	return nil
}

func (p *persistentStateStorage) State() (PersistedMetadata, error) {
	if p.file == nil {
		return PersistedMetadata{}, errStateStorageNotOpen
	}
	return p.state, nil
}
