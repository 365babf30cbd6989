package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteThenReadFrame(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello, partition")
	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf, MaxFrameBytes)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadFrameCleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), MaxFrameBytes)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFramePartialLengthIsError(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0}), MaxFrameBytes)
	require.Error(t, err)
	require.False(t, err == io.EOF)
}

func TestReadFramePartialPayloadIsError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("0123456789")))
	truncated := buf.Bytes()[:len(buf.Bytes())-3]

	_, err := ReadFrame(bytes.NewReader(truncated), MaxFrameBytes)
	require.Error(t, err)
}

func TestReadFrameOversizedIsRejected(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, make([]byte, 100)))

	_, err := ReadFrame(&buf, 10)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}
