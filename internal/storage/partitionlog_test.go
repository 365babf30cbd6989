package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCache() *ReadHandleCache {
	return NewReadHandleCache(16)
}

func TestProduceThenFetchSameConnection(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache()
	defer cache.Close()

	log, err := Open(dir, "test", 0, cache)
	require.NoError(t, err)
	defer log.Close()

	base, err := log.Append([]Record{
		{Key: []byte("k1"), Value: []byte("v1")},
		{Key: []byte("k2"), Value: []byte("v2")},
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), base)

	got, err := log.Fetch(0, 1<<20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(0), got[0].Offset)
	require.Equal(t, []byte("k1"), got[0].Key)
	require.Equal(t, []byte("v1"), got[0].Value)
	require.Equal(t, int64(1), got[1].Offset)
	require.Equal(t, []byte("k2"), got[1].Key)
	require.Equal(t, []byte("v2"), got[1].Value)
}

func TestEmptyKey(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache()
	defer cache.Close()

	log, err := Open(dir, "t", 0, cache)
	require.NoError(t, err)
	defer log.Close()

	_, err = log.Append([]Record{{Key: nil, Value: []byte("hello")}})
	require.NoError(t, err)

	got, err := log.Fetch(0, 1<<20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(0), got[0].Offset)
	require.Empty(t, got[0].Key)
	require.Equal(t, []byte("hello"), got[0].Value)
}

func TestFetchPastEnd(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache()
	defer cache.Close()

	log, err := Open(dir, "t", 0, cache)
	require.NoError(t, err)
	defer log.Close()

	got, err := log.Fetch(0, 1<<20)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFetchTightBudget(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache()
	defer cache.Close()

	log, err := Open(dir, "t", 0, cache)
	require.NoError(t, err)
	defer log.Close()

	_, err = log.Append([]Record{{Key: []byte("a"), Value: []byte("b")}})
	require.NoError(t, err)
	require.Equal(t, recordHeaderBytes+2, recordSize(Record{Key: []byte("a"), Value: []byte("b")}))

	got, err := log.Fetch(0, 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRestartPreservesRecords(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache()
	defer cache.Close()

	log, err := Open(dir, "test", 0, cache)
	require.NoError(t, err)

	_, err = log.Append([]Record{
		{Key: []byte("k1"), Value: []byte("v1")},
		{Key: []byte("k2"), Value: []byte("v2")},
		{Key: []byte("k3"), Value: []byte("v3")},
	})
	require.NoError(t, err)
	require.NoError(t, log.Close())

	reopened, err := Open(dir, "test", 0, newTestCache())
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, int64(3), reopened.NextOffset())

	got, err := reopened.Fetch(0, 1<<20)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, rec := range got {
		require.Equal(t, int64(i), rec.Offset)
	}
}

func TestTruncatedTailFailsToOpen(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache()
	defer cache.Close()

	log, err := Open(dir, "test", 0, cache)
	require.NoError(t, err)
	_, err = log.Append([]Record{{Key: []byte("k"), Value: []byte("v")}})
	require.NoError(t, err)
	require.NoError(t, log.Close())

	path := filePath(dir, "test", 0)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-1))

	_, err = Open(dir, "test", 0, newTestCache())
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestAppendingZeroRecordsIsNoop(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache()
	defer cache.Close()

	log, err := Open(dir, "t", 0, cache)
	require.NoError(t, err)
	defer log.Close()

	base, err := log.Append(nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), base)
	require.Equal(t, int64(0), log.NextOffset())

	path := filePath(dir, "t", 0)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

func TestOffsetDensityAndIndexConsistency(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache()
	defer cache.Close()

	log, err := Open(dir, "t", 0, cache)
	require.NoError(t, err)
	defer log.Close()

	total := 0
	for batch := 0; batch < 5; batch++ {
		n := batch + 1
		records := make([]Record, n)
		for i := range records {
			records[i] = Record{Key: []byte("k"), Value: []byte("v")}
		}
		base, err := log.Append(records)
		require.NoError(t, err)
		require.Equal(t, int64(total), base)
		total += n
	}

	require.Equal(t, int64(total), log.NextOffset())
	require.Len(t, log.index, total)
	for off, pos := range log.index {
		require.GreaterOrEqual(t, pos, int64(0))
		_ = off
	}

	got, err := log.Fetch(0, 1<<30)
	require.NoError(t, err)
	require.Len(t, got, total)
	for i, r := range got {
		require.Equal(t, int64(i), r.Offset)
	}
}

func TestFetchLowerBoundAndMonotonicOffsets(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache()
	defer cache.Close()

	log, err := Open(dir, "t", 0, cache)
	require.NoError(t, err)
	defer log.Close()

	records := make([]Record, 10)
	for i := range records {
		records[i] = Record{Key: []byte("k"), Value: []byte("v")}
	}
	_, err = log.Append(records)
	require.NoError(t, err)

	for start := int64(0); start < 12; start++ {
		got, err := log.Fetch(start, 1<<20)
		require.NoError(t, err)
		prev := int64(-1)
		for _, r := range got {
			require.GreaterOrEqual(t, r.Offset, start)
			require.Greater(t, r.Offset, prev)
			prev = r.Offset
		}
	}
}

func TestFilePath(t *testing.T) {
	require.Equal(t, filepath.Join("data", "orders-3.log"), filePath("data", "orders", 3))
}

func TestStatsAccumulateAcrossFetches(t *testing.T) {
	dir := t.TempDir()
	cache := newTestCache()
	defer cache.Close()

	log, err := Open(dir, "test", 0, cache)
	require.NoError(t, err)
	defer log.Close()

	bytesRead, recordsFetched := log.Stats()
	require.Zero(t, bytesRead)
	require.Zero(t, recordsFetched)

	_, err = log.Append([]Record{
		{Key: []byte("k1"), Value: []byte("v1")},
		{Key: []byte("k2"), Value: []byte("v2")},
	})
	require.NoError(t, err)

	_, err = log.Fetch(0, 1<<20)
	require.NoError(t, err)
	bytesRead, recordsFetched = log.Stats()
	require.Equal(t, int64(2), recordsFetched)
	require.Greater(t, bytesRead, int64(0))

	_, err = log.Fetch(0, 1<<20)
	require.NoError(t, err)
	_, recordsFetched = log.Stats()
	require.Equal(t, int64(4), recordsFetched, "stats accumulate across separate Fetch calls")
}
