// Package wire implements the broker's binary wire protocol: frame
// reader/writer and Request/Response encode/decode.
package wire

import "github.com/pkg/errors"

// ApiKey identifies the shape of a Request payload.
type ApiKey uint8

const (
	ApiProduce ApiKey = 1
	ApiFetch   ApiKey = 2
)

// Tag identifies the shape of a Response payload.
type Tag uint8

const (
	TagProduce Tag = 1
	TagFetch   Tag = 2
	TagError   Tag = 255
)

// MaxFrameBytes is the largest frame the codec will accept. Declared here
// (rather than only in internal/config) so the codec package has no
// dependency on the broker's runtime configuration.
const MaxFrameBytes = 8 << 20

// MaxStringBytes is the largest UTF-8 string the codec will encode; longer
// strings fail encoding with ErrStringTooLong.
const MaxStringBytes = 65535

var (
	// ErrEof is returned when a decode runs out of input mid-field.
	ErrEof = errors.New("wire: unexpected end of input")
	// ErrInvalidApiKey is returned when a request's first byte names no
	// known ApiKey.
	ErrInvalidApiKey = errors.New("wire: invalid api key")
	// ErrStringTooLong is returned when encoding a string longer than
	// MaxStringBytes.
	ErrStringTooLong = errors.New("wire: string exceeds 65535 bytes")
	// ErrKeyTooLong is returned when encoding a record key longer than a
	// uint16 can address.
	ErrKeyTooLong = errors.New("wire: key exceeds 65535 bytes")
	// ErrValueTooLong is returned when encoding a record value longer than
	// a uint32 can address.
	ErrValueTooLong = errors.New("wire: value exceeds 4294967295 bytes")
	// ErrFrameTooLarge is returned by ReadFrame when a frame's declared
	// length exceeds the configured maximum.
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")
)

// Record is an opaque key/value pair, as carried in a Produce request.
type Record struct {
	Key   []byte
	Value []byte
}

// FetchedRecord is a Record tagged with the offset it was stored at.
type FetchedRecord struct {
	Offset int64
	Record
}

// ProduceRequest is the body of an api_key=1 request.
type ProduceRequest struct {
	Topic     string
	Partition uint16
	Records   []Record
}

// FetchRequest is the body of an api_key=2 request.
type FetchRequest struct {
	Topic     string
	Partition uint16
	Offset    int64
	MaxBytes  uint32
}

// Request is the decoded form of any request frame.
type Request struct {
	ApiKey  ApiKey
	Produce *ProduceRequest
	Fetch   *FetchRequest
}

// ProduceResponse is the body of a tag=1 response.
type ProduceResponse struct {
	Status     uint8
	BaseOffset int64
}

// FetchResponse is the body of a tag=2 response.
type FetchResponse struct {
	Status  uint8
	Records []FetchedRecord
}

// ErrorResponse is the body of a tag=255 response.
type ErrorResponse struct {
	Message string
}

// Response is the decoded form of any response frame.
type Response struct {
	Tag     Tag
	Produce *ProduceResponse
	Fetch   *FetchResponse
	Error   *ErrorResponse
}

// NewProduceResponse builds a successful Produce response.
func NewProduceResponse(baseOffset int64) Response {
	return Response{Tag: TagProduce, Produce: &ProduceResponse{Status: 0, BaseOffset: baseOffset}}
}

// NewFetchResponse builds a successful Fetch response.
func NewFetchResponse(records []FetchedRecord) Response {
	return Response{Tag: TagFetch, Fetch: &FetchResponse{Status: 0, Records: records}}
}

// NewErrorResponse builds an ErrorResponse carrying err's message.
func NewErrorResponse(err error) Response {
	return Response{Tag: TagError, Error: &ErrorResponse{Message: err.Error()}}
}
