package raft

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/golang/protobuf/proto"
	"github.com/raftlayer/raft/internal/raftpb"
)

// encodeLogEntry writes a length-prefixed protobuf encoding of entry to w,
// mirroring the teacher's pkg/encoding.go ProtoLogEncoder.
func encodeLogEntry(w io.Writer, entry *LogEntry) error {
	pbEntry := &raftpb.LogEntry{
		Index:     uint64(entry.Index),
		Term:      uint64(entry.Term),
		Offset:    entry.Offset,
		EntryType: uint32(entry.Type),
	}
	switch entry.Type {
	case StateMachineEntry:
		pbEntry.Data = encodeStateMachinePayload(entry)
	case ConfigurationEntry:
		pbEntry.Data = encodeConfigurationPayload(entry)
	}
	return writeLengthPrefixed(w, pbEntry)
}

func decodeLogEntry(r io.Reader) (*LogEntry, error) {
	pbEntry := &raftpb.LogEntry{}
	if err := readLengthPrefixed(r, pbEntry); err != nil {
		return nil, err
	}
	entry := &LogEntry{
		Index:  LogIndex(pbEntry.Index),
		Term:   Term(pbEntry.Term),
		Offset: pbEntry.Offset,
		Type:   LogEntryType(pbEntry.EntryType),
	}
	switch entry.Type {
	case StateMachineEntry:
		decodeStateMachinePayload(pbEntry.Data, entry)
	case ConfigurationEntry:
		decodeConfigurationPayload(pbEntry.Data, entry)
	}
	return entry, nil
}

func encodePersistentMetadata(w io.Writer, state *PersistedMetadata) error {
	pbState := &raftpb.PersistentMetadata{Term: uint64(state.Term), VotedFor: string(state.VotedFor)}
	return writeLengthPrefixed(w, pbState)
}

func decodePersistentMetadata(r io.Reader) (PersistedMetadata, error) {
	pbState := &raftpb.PersistentMetadata{}
	if err := readLengthPrefixed(r, pbState); err != nil {
		return PersistedMetadata{}, err
	}
	return PersistedMetadata{Term: Term(pbState.Term), VotedFor: PeerID(pbState.VotedFor)}, nil
}

func encodeSnapshotRecord(w io.Writer, snapshot *Snapshot) error {
	pbSnapshot := &raftpb.Snapshot{
		LastIncludedIndex: uint64(snapshot.LastIncludedIndex),
		LastIncludedTerm:  uint64(snapshot.LastIncludedTerm),
		Data:              snapshot.Data,
	}
	return writeLengthPrefixed(w, pbSnapshot)
}

func decodeSnapshotRecord(r io.Reader) (Snapshot, error) {
	pbSnapshot := &raftpb.Snapshot{}
	if err := readLengthPrefixed(r, pbSnapshot); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		LastIncludedIndex: LogIndex(pbSnapshot.LastIncludedIndex),
		LastIncludedTerm:  Term(pbSnapshot.LastIncludedTerm),
		Data:              pbSnapshot.Data,
	}, nil
}

// encodeStateMachinePayload/encodeConfigurationPayload pack the
// LogEntry fields that don't have a dedicated protobuf field (ClientID,
// CallID, Peers, Staging) into the generic Data byte slice using a small
// self-describing binary format, keeping the wire message (raftpb.LogEntry)
// stable regardless of entry kind.
func encodeStateMachinePayload(entry *LogEntry) []byte {
	var buf bytes.Buffer
	writeString(&buf, string(entry.ClientID))
	binary.Write(&buf, binary.BigEndian, entry.CallID)
	writeBytes(&buf, entry.Data)
	return buf.Bytes()
}

func decodeStateMachinePayload(data []byte, entry *LogEntry) {
	r := bytes.NewReader(data)
	entry.ClientID = PeerID(readString(r))
	binary.Read(r, binary.BigEndian, &entry.CallID)
	entry.Data = readBytes(r)
}

func encodeConfigurationPayload(entry *LogEntry) []byte {
	var buf bytes.Buffer
	writePeerList(&buf, entry.Peers)
	writePeerList(&buf, entry.Staging)
	return buf.Bytes()
}

func decodeConfigurationPayload(data []byte, entry *LogEntry) {
	r := bytes.NewReader(data)
	entry.Peers = readPeerList(r)
	entry.Staging = readPeerList(r)
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, int32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) string {
	var n int32
	binary.Read(r, binary.BigEndian, &n)
	b := make([]byte, n)
	io.ReadFull(r, b)
	return string(b)
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.BigEndian, int32(len(b)))
	buf.Write(b)
}

func readBytes(r *bytes.Reader) []byte {
	var n int32
	binary.Read(r, binary.BigEndian, &n)
	b := make([]byte, n)
	io.ReadFull(r, b)
	return b
}

func writePeerList(buf *bytes.Buffer, peers []PeerID) {
	binary.Write(buf, binary.BigEndian, int32(len(peers)))
	for _, p := range peers {
		writeString(buf, string(p))
	}
}

func readPeerList(r *bytes.Reader) []PeerID {
	var n int32
	binary.Read(r, binary.BigEndian, &n)
	if n == 0 {
		return nil
	}
	peers := make([]PeerID, n)
	for i := range peers {
		peers[i] = PeerID(readString(r))
	}
	return peers
}

func writeLengthPrefixed(w io.Writer, m proto.Message) error {
	buf, err := proto.Marshal(m)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(len(buf))); err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func readLengthPrefixed(r io.Reader, m proto.Message) error {
	var size int32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	return proto.Unmarshal(buf, m)
}
