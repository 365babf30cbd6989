// Package server implements the TCP connection handler: the accept loop
// and the per-connection request/response loop.
package server

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/a838242002/mini-kafka/internal/broker"
	"github.com/a838242002/mini-kafka/internal/metrics"
	"github.com/a838242002/mini-kafka/internal/wire"
)

// Server accepts TCP connections and drives the produce/fetch request loop
// on each one. Connections are long-lived and pipeline-free: one
// decode/handle/encode cycle completes before the next frame is read from
// the same connection.
type Server struct {
	listener      net.Listener
	registry      *broker.Registry
	logger        log.Logger
	maxFrameBytes uint32

	wg sync.WaitGroup
}

// New binds addr and returns a Server ready to Serve.
func New(addr string, registry *broker.Registry, maxFrameBytes uint32, logger log.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener:      ln,
		registry:      registry,
		logger:        logger,
		maxFrameBytes: maxFrameBytes,
	}, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed, handling each on
// its own goroutine. It returns nil on an orderly Close.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		metrics.ConnectionsActive.Inc()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer metrics.ConnectionsActive.Dec()
			s.handleConn(conn)
		}()
	}
}

// Close stops accepting new connections and waits for in-flight handlers to
// return. It does not close connections that were already accepted: it
// returns only once each of their handlers has exited, which happens when
// the peer closes the connection or an I/O error occurs on it.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

// handleConn drives one connection's request loop: read a frame, decode,
// dispatch to the registry, encode, write the reply, repeat. It never exits
// on a protocol error it can report — only on I/O failure or peer close.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		payload, err := wire.ReadFrame(conn, s.maxFrameBytes)
		if err != nil {
			if err != io.EOF {
				level.Debug(s.logger).Log("msg", "closing connection", "remote", conn.RemoteAddr(), "err", err)
			}
			return
		}

		req, decodeErr := wire.DecodeRequest(payload)
		var resp wire.Response
		if decodeErr != nil {
			resp = wire.NewErrorResponse(decodeErr)
		} else {
			resp = s.registry.Handle(req)
		}

		respPayload, err := wire.EncodeResponse(resp)
		if err != nil {
			level.Error(s.logger).Log("msg", "failed to encode response, closing connection", "err", err)
			return
		}
		if err := wire.WriteFrame(conn, respPayload); err != nil {
			level.Debug(s.logger).Log("msg", "failed to write response, closing connection", "err", err)
			return
		}
	}
}
