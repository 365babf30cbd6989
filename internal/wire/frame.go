package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ReadFrame reads one length-prefixed frame from r: a 4-byte big-endian
// length followed by that many bytes of payload.
//
// A clean EOF before any byte of the length prefix is read is returned as
// io.EOF verbatim, signalling an orderly close. Any other short read — a
// partial length prefix, or a payload cut off before
// its declared length — is a protocol error that must close the connection.
// A frame whose declared length exceeds maxBytes is rejected the same way,
// without attempting to read its payload.
func ReadFrame(r io.Reader, maxBytes uint32) ([]byte, error) {
	var lenBuf [4]byte
	n, err := io.ReadFull(r, lenBuf[:])
	if err != nil {
		if err == io.EOF && n == 0 {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "wire: short read on frame length")
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > maxBytes {
		return nil, errors.Wrapf(ErrFrameTooLarge, "declared length %d exceeds max %d", length, maxBytes)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "wire: short read on frame payload")
	}
	return payload, nil
}

// WriteFrame writes payload to w preceded by its 4-byte big-endian length.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "wire: write frame length")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "wire: write frame payload")
	}
	return nil
}
