package server

import (
	"net"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	"github.com/a838242002/mini-kafka/internal/broker"
	"github.com/a838242002/mini-kafka/internal/wire"
)

func startTestServer(t *testing.T) net.Conn {
	t.Helper()
	registry := broker.NewRegistry(t.TempDir(), 16, 4, log.NewNopLogger())
	srv, err := New("127.0.0.1:0", registry, wire.MaxFrameBytes, log.NewNopLogger())
	require.NoError(t, err)

	go srv.Serve()
	t.Cleanup(func() {
		_ = srv.Close()
		_ = registry.Close()
	})

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn net.Conn, req wire.Request) wire.Response {
	t.Helper()
	payload, err := wire.EncodeRequest(req)
	require.NoError(t, err)
	require.NoError(t, wire.WriteFrame(conn, payload))

	respPayload, err := wire.ReadFrame(conn, wire.MaxFrameBytes)
	require.NoError(t, err)
	resp, err := wire.DecodeResponse(respPayload)
	require.NoError(t, err)
	return resp
}

func TestScenarioProduceThenFetch(t *testing.T) {
	conn := startTestServer(t)

	produceResp := roundTrip(t, conn, wire.Request{
		ApiKey: wire.ApiProduce,
		Produce: &wire.ProduceRequest{
			Topic:     "test",
			Partition: 0,
			Records: []wire.Record{
				{Key: []byte("k1"), Value: []byte("v1")},
				{Key: []byte("k2"), Value: []byte("v2")},
			},
		},
	})
	require.Equal(t, wire.TagProduce, produceResp.Tag)
	require.Equal(t, uint8(0), produceResp.Produce.Status)
	require.Equal(t, int64(0), produceResp.Produce.BaseOffset)

	fetchResp := roundTrip(t, conn, wire.Request{
		ApiKey: wire.ApiFetch,
		Fetch:  &wire.FetchRequest{Topic: "test", Partition: 0, Offset: 0, MaxBytes: 1 << 20},
	})
	require.Equal(t, wire.TagFetch, fetchResp.Tag)
	require.Equal(t, uint8(0), fetchResp.Fetch.Status)
	require.Len(t, fetchResp.Fetch.Records, 2)
	require.Equal(t, int64(0), fetchResp.Fetch.Records[0].Offset)
	require.Equal(t, int64(1), fetchResp.Fetch.Records[1].Offset)
}

func TestScenarioUnknownApiKeyThenValidRequest(t *testing.T) {
	conn := startTestServer(t)

	require.NoError(t, wire.WriteFrame(conn, []byte{7}))
	respPayload, err := wire.ReadFrame(conn, wire.MaxFrameBytes)
	require.NoError(t, err)
	resp, err := wire.DecodeResponse(respPayload)
	require.NoError(t, err)
	require.Equal(t, wire.TagError, resp.Tag)
	require.Contains(t, resp.Error.Message, "invalid api key")

	// connection stays open; a subsequent valid request succeeds.
	fetchResp := roundTrip(t, conn, wire.Request{
		ApiKey: wire.ApiFetch,
		Fetch:  &wire.FetchRequest{Topic: "test", Partition: 0, Offset: 0, MaxBytes: 1 << 20},
	})
	require.Equal(t, wire.TagFetch, fetchResp.Tag)
	require.Empty(t, fetchResp.Fetch.Records)
}

func TestScenarioOversizedFrameClosesConnection(t *testing.T) {
	conn := startTestServer(t)

	var lenBuf [4]byte
	lenBuf[0] = 0xFF // declares an enormous length, well past MaxFrameBytes
	_, err := conn.Write(lenBuf[:])
	require.NoError(t, err)

	_, err = wire.ReadFrame(conn, wire.MaxFrameBytes)
	require.Error(t, err)
}
