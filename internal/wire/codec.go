package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// encoder accumulates a wire payload using encoding/binary against a
// growable buffer, since a Request/Response payload is built in memory
// before it is length-prefixed onto the wire by WriteFrame.
type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) writeUint8(v uint8) {
	e.buf.WriteByte(v)
}

func (e *encoder) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) writeInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	e.buf.Write(b[:])
}

// writeString encodes a u16-length-prefixed UTF-8 string.
func (e *encoder) writeString(s string) error {
	if len(s) > MaxStringBytes {
		return ErrStringTooLong
	}
	e.writeUint16(uint16(len(s)))
	e.buf.WriteString(s)
	return nil
}

// writeKey encodes a u16-length-prefixed opaque key.
func (e *encoder) writeKey(b []byte) error {
	if len(b) > math.MaxUint16 {
		return ErrKeyTooLong
	}
	e.writeUint16(uint16(len(b)))
	e.buf.Write(b)
	return nil
}

// writeValue encodes a u32-length-prefixed opaque value.
func (e *encoder) writeValue(b []byte) error {
	if uint64(len(b)) > math.MaxUint32 {
		return ErrValueTooLong
	}
	e.writeUint32(uint32(len(b)))
	e.buf.Write(b)
	return nil
}

func (e *encoder) bytes() []byte {
	return e.buf.Bytes()
}

// decoder consumes a wire payload sequentially, failing with ErrEof once it
// runs out of input.
type decoder struct {
	b   []byte
	pos int
}

func newDecoder(b []byte) *decoder {
	return &decoder{b: b}
}

func (d *decoder) need(n int) error {
	if len(d.b)-d.pos < n {
		return ErrEof
	}
	return nil
}

func (d *decoder) readUint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.b[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) readUint16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.b[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *decoder) readUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.b[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) readInt64() (int64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := int64(binary.BigEndian.Uint64(d.b[d.pos:]))
	d.pos += 8
	return v, nil
}

func (d *decoder) readBytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.b[d.pos:d.pos+n])
	d.pos += n
	return out, nil
}

// readString decodes a u16-length-prefixed string, lossily repairing invalid
// UTF-8 with the Unicode replacement character rather than failing — string
// fields never fail to decode.
func (d *decoder) readString() (string, error) {
	n, err := d.readUint16()
	if err != nil {
		return "", err
	}
	raw, err := d.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(raw), "�"), nil
}

// readKey decodes a u16-length-prefixed opaque key.
func (d *decoder) readKey() ([]byte, error) {
	n, err := d.readUint16()
	if err != nil {
		return nil, err
	}
	return d.readBytes(int(n))
}

// readValue decodes a u32-length-prefixed opaque value.
func (d *decoder) readValue() ([]byte, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	return d.readBytes(int(n))
}

// EncodeRequest encodes a Request into a request payload (without the frame
// length prefix — see WriteFrame).
func EncodeRequest(req Request) ([]byte, error) {
	e := &encoder{}
	switch req.ApiKey {
	case ApiProduce:
		p := req.Produce
		e.writeUint8(uint8(ApiProduce))
		if err := e.writeString(p.Topic); err != nil {
			return nil, err
		}
		e.writeUint16(p.Partition)
		if len(p.Records) > math.MaxUint16 {
			return nil, errors.New("wire: too many records for a single batch")
		}
		e.writeUint16(uint16(len(p.Records)))
		for _, r := range p.Records {
			if err := e.writeKey(r.Key); err != nil {
				return nil, err
			}
			if err := e.writeValue(r.Value); err != nil {
				return nil, err
			}
		}
	case ApiFetch:
		f := req.Fetch
		e.writeUint8(uint8(ApiFetch))
		if err := e.writeString(f.Topic); err != nil {
			return nil, err
		}
		e.writeUint16(f.Partition)
		e.writeInt64(f.Offset)
		e.writeUint32(f.MaxBytes)
	default:
		return nil, errors.Wrapf(ErrInvalidApiKey, "api_key %d", req.ApiKey)
	}
	return e.bytes(), nil
}

// DecodeRequest decodes a request payload (the frame's body, length prefix
// already stripped by ReadFrame).
func DecodeRequest(payload []byte) (Request, error) {
	d := newDecoder(payload)
	apiKeyByte, err := d.readUint8()
	if err != nil {
		return Request{}, err
	}

	switch ApiKey(apiKeyByte) {
	case ApiProduce:
		topic, err := d.readString()
		if err != nil {
			return Request{}, err
		}
		partition, err := d.readUint16()
		if err != nil {
			return Request{}, err
		}
		count, err := d.readUint16()
		if err != nil {
			return Request{}, err
		}
		records := make([]Record, 0, count)
		for i := 0; i < int(count); i++ {
			key, err := d.readKey()
			if err != nil {
				return Request{}, err
			}
			value, err := d.readValue()
			if err != nil {
				return Request{}, err
			}
			records = append(records, Record{Key: key, Value: value})
		}
		return Request{
			ApiKey: ApiProduce,
			Produce: &ProduceRequest{
				Topic:     topic,
				Partition: partition,
				Records:   records,
			},
		}, nil
	case ApiFetch:
		topic, err := d.readString()
		if err != nil {
			return Request{}, err
		}
		partition, err := d.readUint16()
		if err != nil {
			return Request{}, err
		}
		offset, err := d.readInt64()
		if err != nil {
			return Request{}, err
		}
		maxBytes, err := d.readUint32()
		if err != nil {
			return Request{}, err
		}
		return Request{
			ApiKey: ApiFetch,
			Fetch: &FetchRequest{
				Topic:     topic,
				Partition: partition,
				Offset:    offset,
				MaxBytes:  maxBytes,
			},
		}, nil
	default:
		return Request{}, errors.Wrapf(ErrInvalidApiKey, "api_key %d", apiKeyByte)
	}
}

// EncodeResponse encodes a Response into a response payload (without the
// frame length prefix).
func EncodeResponse(resp Response) ([]byte, error) {
	e := &encoder{}
	switch resp.Tag {
	case TagProduce:
		e.writeUint8(uint8(TagProduce))
		e.writeUint8(resp.Produce.Status)
		e.writeInt64(resp.Produce.BaseOffset)
	case TagFetch:
		e.writeUint8(uint8(TagFetch))
		e.writeUint8(resp.Fetch.Status)
		if len(resp.Fetch.Records) > math.MaxUint16 {
			return nil, errors.New("wire: too many records in a single fetch response")
		}
		e.writeUint16(uint16(len(resp.Fetch.Records)))
		for _, r := range resp.Fetch.Records {
			e.writeInt64(r.Offset)
			if err := e.writeKey(r.Key); err != nil {
				return nil, err
			}
			if err := e.writeValue(r.Value); err != nil {
				return nil, err
			}
		}
	case TagError:
		e.writeUint8(uint8(TagError))
		if err := e.writeString(resp.Error.Message); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("wire: unknown response tag %d", resp.Tag)
	}
	return e.bytes(), nil
}

// DecodeResponse decodes a response payload.
func DecodeResponse(payload []byte) (Response, error) {
	d := newDecoder(payload)
	tagByte, err := d.readUint8()
	if err != nil {
		return Response{}, err
	}

	switch Tag(tagByte) {
	case TagProduce:
		status, err := d.readUint8()
		if err != nil {
			return Response{}, err
		}
		baseOffset, err := d.readInt64()
		if err != nil {
			return Response{}, err
		}
		return Response{Tag: TagProduce, Produce: &ProduceResponse{Status: status, BaseOffset: baseOffset}}, nil
	case TagFetch:
		status, err := d.readUint8()
		if err != nil {
			return Response{}, err
		}
		count, err := d.readUint16()
		if err != nil {
			return Response{}, err
		}
		records := make([]FetchedRecord, 0, count)
		for i := 0; i < int(count); i++ {
			offset, err := d.readInt64()
			if err != nil {
				return Response{}, err
			}
			key, err := d.readKey()
			if err != nil {
				return Response{}, err
			}
			value, err := d.readValue()
			if err != nil {
				return Response{}, err
			}
			records = append(records, FetchedRecord{Offset: offset, Record: Record{Key: key, Value: value}})
		}
		return Response{Tag: TagFetch, Fetch: &FetchResponse{Status: status, Records: records}}, nil
	case TagError:
		message, err := d.readString()
		if err != nil {
			return Response{}, err
		}
		return Response{Tag: TagError, Error: &ErrorResponse{Message: message}}, nil
	default:
		return Response{}, errors.Errorf("wire: unknown response tag %d", tagByte)
	}
}
