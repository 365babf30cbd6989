// Package storage implements the partition log: an append-only,
// offset-indexed record file per (topic, partition), with crash recovery.
package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// ErrCorrupted is returned by Open when the log file ends mid-record: there
// are insufficient bytes remaining to parse the next offset, klen, key,
// vlen, or value. Strict by design: an operator debugging a crash should
// see the failure rather than have it silently truncated away.
var ErrCorrupted = errors.New("storage: corrupted log: truncated record at tail")

// ReadHandleCache bounds the number of independently-opened read-only file
// handles kept warm across Fetch calls, shared by every PartitionLog a
// Registry manages. It is the ambient efficiency layer described in
// SPEC_FULL.md §4.2 — purely an optimization; Fetch's observable behavior is
// identical whether a handle is cached or opened fresh.
// ReadHandleCache is safe for concurrent use: distinct partitions are only
// serialized against each other by the registry's per-partition locks, not
// against the cache itself, so every partition's Fetch may reach it at once.
type ReadHandleCache struct {
	cache *lru.Cache[string, *os.File]
}

// NewReadHandleCache builds a cache holding at most size open read handles,
// closing evicted ones.
func NewReadHandleCache(size int) *ReadHandleCache {
	c, _ := lru.NewWithEvict[string, *os.File](size, func(_ string, f *os.File) {
		_ = f.Close()
	})
	return &ReadHandleCache{cache: c}
}

func (c *ReadHandleCache) get(path string) (*os.File, error) {
	if f, ok := c.cache.Get(path); ok {
		return f, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, f)
	return f, nil
}

// Close closes every cached handle. Called at process shutdown.
func (c *ReadHandleCache) Close() {
	c.cache.Purge()
}

// PartitionLog is the append-only record file backing one (topic,
// partition). Every exported method assumes the caller has already obtained
// exclusive access to this partition — PartitionLog itself performs no
// internal locking; see internal/broker.Registry.
type PartitionLog struct {
	path   string
	writer *os.File
	size   int64 // current file size in bytes

	nextOffset int64
	index      []int64 // index[offset] = byte position where that record's framing begins

	reads *ReadHandleCache

	// Cumulative read-path counters: bytes pulled off disk and records
	// handed back across every Fetch this log has served. Exposed via
	// Stats; Fetch's return value is unaffected.
	bytesRead      *atomic.Int64
	recordsFetched *atomic.Int64
}

// filePath returns the on-disk path for a (topic, partition) log:
// <data_dir>/<topic>-<partition>.log.
func filePath(dir, topic string, partition uint16) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d.log", topic, partition))
}

// Open ensures dir exists, opens (creating if absent) the log file for
// topic/partition, and runs the recovery scan to rebuild the in-memory
// index and next_offset. A freshly created, empty file is valid and yields
// next_offset = 0. Fails with ErrCorrupted if the file ends mid-record.
func Open(dir, topic string, partition uint16, reads *ReadHandleCache) (*PartitionLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "storage: create data directory")
	}

	path := filePath(dir, topic, partition)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "storage: open log file")
	}

	p := &PartitionLog{
		path:           path,
		writer:         f,
		reads:          reads,
		bytesRead:      atomic.NewInt64(0),
		recordsFetched: atomic.NewInt64(0),
	}

	if err := p.recover(); err != nil {
		f.Close()
		return nil, err
	}

	return p, nil
}

// recover scans the log file from the start, rebuilding index/nextOffset/
// size, and fails with ErrCorrupted on a truncated trailing record rather
// than silently dropping it.
func (p *PartitionLog) recover() error {
	if _, err := p.writer.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "storage: seek to start for recovery")
	}

	r := p.writer
	var pos int64
	var offset int64

	for {
		var offsetBuf [8]byte
		n, err := io.ReadFull(r, offsetBuf[:])
		if err != nil {
			if err == io.EOF && n == 0 {
				break // clean end of log
			}
			return errors.Wrapf(ErrCorrupted, "truncated offset field at byte %d", pos)
		}
		storedOffset := int64(binary.BigEndian.Uint64(offsetBuf[:]))
		if storedOffset != offset {
			return errors.Wrapf(ErrCorrupted, "offset mismatch at byte %d: file has %d, expected %d", pos, storedOffset, offset)
		}

		var klenBuf [2]byte
		if _, err := io.ReadFull(r, klenBuf[:]); err != nil {
			return errors.Wrapf(ErrCorrupted, "truncated key length field at byte %d", pos)
		}
		klen := binary.BigEndian.Uint16(klenBuf[:])

		if _, err := io.CopyN(io.Discard, r, int64(klen)); err != nil {
			return errors.Wrapf(ErrCorrupted, "truncated key at byte %d", pos)
		}

		var vlenBuf [4]byte
		if _, err := io.ReadFull(r, vlenBuf[:]); err != nil {
			return errors.Wrapf(ErrCorrupted, "truncated value length field at byte %d", pos)
		}
		vlen := binary.BigEndian.Uint32(vlenBuf[:])

		if _, err := io.CopyN(io.Discard, r, int64(vlen)); err != nil {
			return errors.Wrapf(ErrCorrupted, "truncated value at byte %d", pos)
		}

		recordLen := int64(recordHeaderBytes) + int64(klen) + int64(vlen)
		p.index = append(p.index, pos)
		pos += recordLen
		offset++
	}

	p.nextOffset = offset
	p.size = pos
	return nil
}

// NextOffset returns the offset that will be assigned to the next appended
// record.
func (p *PartitionLog) NextOffset() int64 {
	return p.nextOffset
}

// Size returns the current on-disk size of the log file in bytes.
func (p *PartitionLog) Size() int64 {
	return p.size
}

// Append assigns each record the next offset in sequence, writes them
// back-to-back, and fsyncs before returning. Appending zero records is a
// no-op (no I/O, no fsync) that returns the current next_offset. On
// success, every appended record is recoverable by a fresh Open, even
// across a crash.
func (p *PartitionLog) Append(records []Record) (base int64, err error) {
	base = p.nextOffset
	if len(records) == 0 {
		return base, nil
	}

	total := 0
	for _, r := range records {
		total += recordSize(r)
	}
	buf := make([]byte, 0, total)
	w := &sliceWriter{buf: &buf}

	newIndex := make([]int64, 0, len(records))
	pos := p.size
	offset := p.nextOffset
	for _, r := range records {
		newIndex = append(newIndex, pos)
		n, werr := marshalRecord(w, offset, r)
		if werr != nil {
			return 0, errors.Wrap(werr, "storage: marshal record")
		}
		pos += int64(n)
		offset++
	}

	if _, err := p.writer.Write(buf); err != nil {
		return 0, errors.Wrap(err, "storage: write records")
	}
	if err := p.writer.Sync(); err != nil {
		return 0, errors.Wrap(err, "storage: fsync after append")
	}

	p.index = append(p.index, newIndex...)
	p.nextOffset = offset
	p.size = pos

	return base, nil
}

// Fetch returns records starting from the smallest stored offset that is >=
// offset, stopping once their encoded sizes would exceed maxBytes, on
// end-of-file, or on any short read. It never errors on a short/truncated
// trailing read — that is an expected stopping condition for Fetch, unlike
// the stricter treatment Open/recover gives the same situation.
func (p *PartitionLog) Fetch(offset int64, maxBytes uint32) ([]FetchedRecord, error) {
	start := offset
	if start < 0 {
		start = 0
	}
	if start >= p.nextOffset {
		return nil, nil
	}

	f, err := p.reads.get(p.path)
	if err != nil {
		return nil, errors.Wrap(err, "storage: open read handle")
	}

	sr := io.NewSectionReader(f, p.index[start], p.size-p.index[start])

	var out []FetchedRecord
	remaining := int64(maxBytes)
	for {
		if remaining < recordHeaderBytes {
			break
		}

		var offsetBuf [8]byte
		if _, err := io.ReadFull(sr, offsetBuf[:]); err != nil {
			break
		}
		remaining -= 8
		recOffset := int64(binary.BigEndian.Uint64(offsetBuf[:]))

		var klenBuf [2]byte
		if _, err := io.ReadFull(sr, klenBuf[:]); err != nil {
			break
		}
		remaining -= 2
		klen := int64(binary.BigEndian.Uint16(klenBuf[:]))

		if remaining < klen {
			break
		}
		key := make([]byte, klen)
		if _, err := io.ReadFull(sr, key); err != nil {
			break
		}
		remaining -= klen

		if remaining < 4 {
			break
		}
		var vlenBuf [4]byte
		if _, err := io.ReadFull(sr, vlenBuf[:]); err != nil {
			break
		}
		remaining -= 4
		vlen := int64(binary.BigEndian.Uint32(vlenBuf[:]))

		if remaining < vlen {
			break
		}
		value := make([]byte, vlen)
		if _, err := io.ReadFull(sr, value); err != nil {
			break
		}
		remaining -= vlen

		if recOffset < offset {
			continue
		}
		out = append(out, FetchedRecord{Offset: recOffset, Record: Record{Key: key, Value: value}})
	}

	p.bytesRead.Add(int64(maxBytes) - remaining)
	p.recordsFetched.Add(int64(len(out)))

	return out, nil
}

// Stats returns the cumulative bytes read and records returned across every
// Fetch this log has served.
func (p *PartitionLog) Stats() (bytesRead, recordsFetched int64) {
	return p.bytesRead.Load(), p.recordsFetched.Load()
}

// Close releases the append file handle. Cached read handles are owned and
// closed by the shared ReadHandleCache, not by PartitionLog.
func (p *PartitionLog) Close() error {
	return p.writer.Close()
}

// sliceWriter is an io.Writer over a growing []byte, avoiding the extra
// allocation bytes.Buffer's internal copy-on-grow would add for a
// size-known-up-front batch of records.
type sliceWriter struct {
	buf *[]byte
}

func (s *sliceWriter) Write(p []byte) (int, error) {
	*s.buf = append(*s.buf, p...)
	return len(p), nil
}
