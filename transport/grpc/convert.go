package grpc

import (
	"bytes"
	"encoding/binary"

	"github.com/raftlayer/raft"
	"github.com/raftlayer/raft/internal/raftpb"
)

// toWireEntry and fromWireEntry fold a raft.LogEntry's StateMachineEntry
// (ClientID, CallID, Data) or ConfigurationEntry (Peers, Staging) fields
// into/out of raftpb.LogEntry's single Data blob, the same length-prefixed
// approach encoding.go uses for on-disk entries, kept separate since the
// wire and storage formats are free to diverge.
func toWireEntry(e *raft.LogEntry) *raftpb.LogEntry {
	w := &raftpb.LogEntry{
		Index:     uint64(e.Index),
		Term:      uint64(e.Term),
		Offset:    e.Offset,
		EntryType: uint32(e.Type),
	}
	var buf bytes.Buffer
	switch e.Type {
	case raft.StateMachineEntry:
		writeString(&buf, string(e.ClientID))
		writeUint64(&buf, e.CallID)
		writeBytes(&buf, e.Data)
	case raft.ConfigurationEntry:
		writePeers(&buf, e.Peers)
		writePeers(&buf, e.Staging)
	}
	w.Data = buf.Bytes()
	return w
}

func fromWireEntry(w *raftpb.LogEntry) *raft.LogEntry {
	e := &raft.LogEntry{
		Index:  raft.LogIndex(w.Index),
		Term:   raft.Term(w.Term),
		Offset: w.Offset,
		Type:   raft.LogEntryType(w.EntryType),
	}
	r := bytes.NewReader(w.Data)
	switch e.Type {
	case raft.StateMachineEntry:
		e.ClientID = raft.PeerID(readString(r))
		e.CallID = readUint64(r)
		e.Data = raft.Message(readBytes(r))
	case raft.ConfigurationEntry:
		e.Peers = readPeers(r)
		e.Staging = readPeers(r)
	}
	return e
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func readString(r *bytes.Reader) string {
	return string(readBytes(r))
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint64(r *bytes.Reader) uint64 {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint64(b[:])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint64(buf, uint64(len(b)))
	buf.Write(b)
}

func readBytes(r *bytes.Reader) []byte {
	n := readUint64(r)
	if n == 0 {
		return nil
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return nil
	}
	return b
}

func writePeers(buf *bytes.Buffer, peers []raft.PeerID) {
	writeUint64(buf, uint64(len(peers)))
	for _, p := range peers {
		writeString(buf, string(p))
	}
}

func readPeers(r *bytes.Reader) []raft.PeerID {
	n := readUint64(r)
	if n == 0 {
		return nil
	}
	peers := make([]raft.PeerID, n)
	for i := range peers {
		peers[i] = raft.PeerID(readString(r))
	}
	return peers
}

func toWireEntries(entries []*raft.LogEntry) []*raftpb.LogEntry {
	if entries == nil {
		return nil
	}
	out := make([]*raftpb.LogEntry, len(entries))
	for i, e := range entries {
		out[i] = toWireEntry(e)
	}
	return out
}

func fromWireEntries(entries []*raftpb.LogEntry) []*raft.LogEntry {
	if entries == nil {
		return nil
	}
	out := make([]*raft.LogEntry, len(entries))
	for i, e := range entries {
		out[i] = fromWireEntry(e)
	}
	return out
}
