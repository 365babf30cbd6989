package storage

import (
	"encoding/binary"
	"io"
)

// Record is an opaque key/value pair as stored on disk. It mirrors
// wire.Record but the storage package is deliberately decoupled from the
// wire protocol — a PartitionLog has no notion of requests or responses.
type Record struct {
	Key   []byte
	Value []byte
}

// FetchedRecord is a Record tagged with the offset it was stored at.
type FetchedRecord struct {
	Offset int64
	Record
}

// recordHeaderBytes is the size of a record's fixed-width fields: an i64
// offset, a u16 key length, and a u32 value length.
const recordHeaderBytes = 8 + 2 + 4

// marshalRecord writes one framed record to w in the on-disk layout:
//
//	[offset:i64][klen:u16][key:klen bytes][vlen:u32][value:vlen bytes]
//
// and returns the number of bytes written.
func marshalRecord(w io.Writer, offset int64, r Record) (int, error) {
	header := make([]byte, recordHeaderBytes-4) // offset + klen, vlen comes after key
	binary.BigEndian.PutUint64(header[0:8], uint64(offset))
	binary.BigEndian.PutUint16(header[8:10], uint16(len(r.Key)))
	if _, err := w.Write(header); err != nil {
		return 0, err
	}
	if _, err := w.Write(r.Key); err != nil {
		return 0, err
	}

	var vlen [4]byte
	binary.BigEndian.PutUint32(vlen[:], uint32(len(r.Value)))
	if _, err := w.Write(vlen[:]); err != nil {
		return 0, err
	}
	if _, err := w.Write(r.Value); err != nil {
		return 0, err
	}

	return len(header) + len(r.Key) + len(vlen) + len(r.Value), nil
}

// recordSize returns the on-disk size of a framed record without writing it.
func recordSize(r Record) int {
	return recordHeaderBytes + len(r.Key) + len(r.Value)
}
