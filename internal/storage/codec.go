package storage

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"

	"github.com/yndnr/trajsnap/internal/core/domain"
)

// recordFormat is bumped whenever the wire layout changes incompatibly.
const recordFormat = 1

type recordKind byte

const (
	kindSnapshot recordKind = iota + 1
	kindTopology
)

// snapshotRecord is the stored form of one snapshot.
//
// A record either carries its own attribute values or names a MirrorOf
// record whose values it shares; the latter is how the reversed half of a
// pair is written without duplicating its arrays.
type snapshotRecord struct {
	Format      int                        `json:"format"`
	ID          string                     `json:"id"`
	Type        string                     `json:"type"`
	Fingerprint uint64                     `json:"fingerprint"`
	Reversed    bool                       `json:"reversed"`
	Partner     string                     `json:"partner,omitempty"`
	MirrorOf    string                     `json:"mirror_of,omitempty"`
	Topology    string                     `json:"topology,omitempty"`
	StoredAt    int64                      `json:"stored_at"`
	Attributes  map[string]json.RawMessage `json:"attributes,omitempty"`
}

type topologyRecord struct {
	Format   int              `json:"format"`
	Topology *domain.Topology `json:"topology"`
}

// encodeFrame wraps a JSON payload. Frame layout: [crc32:4][kind:1][payload...]
// with the checksum covering kind and payload.
func encodeFrame(kind recordKind, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err).WithDetails("marshal record")
	}

	out := make([]byte, 5, 5+len(payload))
	out[4] = byte(kind)
	out = append(out, payload...)
	binary.BigEndian.PutUint32(out[:4], crc32.ChecksumIEEE(out[4:]))
	return out, nil
}

// decodeFrame verifies a frame and unmarshals its payload into v.
func decodeFrame(frame []byte, want recordKind, v any) error {
	if len(frame) < 5 {
		return domain.ErrCorruptedRecord.WithDetails("frame too short")
	}
	wantCRC := binary.BigEndian.Uint32(frame[:4])
	if crc32.ChecksumIEEE(frame[4:]) != wantCRC {
		return domain.ErrCorruptedRecord.WithDetails("checksum mismatch")
	}
	if recordKind(frame[4]) != want {
		return domain.ErrCorruptedRecord.WithDetailsf("unexpected record kind %d", frame[4])
	}
	if err := json.Unmarshal(frame[5:], v); err != nil {
		return domain.ErrCorruptedRecord.WithCause(err).WithDetails("unmarshal payload")
	}
	return nil
}

func decodeSnapshotRecord(frame []byte) (*snapshotRecord, error) {
	var rec snapshotRecord
	if err := decodeFrame(frame, kindSnapshot, &rec); err != nil {
		return nil, err
	}
	if rec.Format != recordFormat {
		return nil, domain.ErrSchemaMismatch.WithDetailsf("record format %d, want %d", rec.Format, recordFormat)
	}
	return &rec, nil
}

func decodeTopologyRecord(frame []byte) (*domain.Topology, error) {
	var rec topologyRecord
	if err := decodeFrame(frame, kindTopology, &rec); err != nil {
		return nil, err
	}
	if rec.Format != recordFormat {
		return nil, domain.ErrSchemaMismatch.WithDetailsf("record format %d, want %d", rec.Format, recordFormat)
	}
	if rec.Topology == nil {
		return nil, domain.ErrCorruptedRecord.WithDetails("topology record without topology")
	}
	return rec.Topology, nil
}

const (
	snapshotPrefix = "snap/"
	topologyPrefix = "topo/"
)

func snapshotKey(tok domain.IdentityToken) []byte {
	return []byte(snapshotPrefix + tok.String())
}

func topologyKey(name string) []byte {
	return []byte(topologyPrefix + name)
}
